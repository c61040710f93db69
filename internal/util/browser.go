package util

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
)

// ErrNoBrowser 当前平台找不到可用的打开命令
var ErrNoBrowser = errors.New("no browser launcher found")

// browserCommands 各平台依次尝试的打开命令，url 作为最后一个参数追加
var browserCommands = map[string][][]string{
	"windows": {{"rundll32", "url.dll,FileProtocolHandler"}, {"explorer"}},
	"darwin":  {{"open"}},
	"linux":   {{"xdg-open"}, {"sensible-browser"}, {"google-chrome"}, {"firefox"}, {"chromium-browser"}},
}

// OpenURL 在浏览器中打开看板地址，使用第一个能启动的命令
func OpenURL(url string) error {
	candidates, ok := browserCommands[runtime.GOOS]
	if !ok {
		candidates = browserCommands["linux"]
	}
	return openWith(candidates, exec.LookPath, startDetached, url)
}

func startDetached(path string, args ...string) error {
	return exec.Command(path, args...).Start()
}

func openWith(candidates [][]string, lookPath func(string) (string, error),
	start func(string, ...string) error, url string) error {
	var errs []error
	for _, c := range candidates {
		path, err := lookPath(c[0])
		if err != nil {
			continue
		}
		args := append(append([]string{}, c[1:]...), url)
		if err := start(path, args...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c[0], err))
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrNoBrowser
	}
	return errors.Join(errs...)
}

// PortAvailable 端口当前能否监听
func PortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
