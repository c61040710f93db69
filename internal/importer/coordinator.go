package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/parser"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/store"
)

// Coordinator 导入协调器：读取 → 校验 → 预览/统计 → 装载 → 记录
type Coordinator struct {
	store  *store.Store
	loader *Loader
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store) *Coordinator {
	return &Coordinator{
		store:  st,
		loader: NewLoader(st),
	}
}

// ImportOptions 导入选项
type ImportOptions struct {
	FilePath    string
	Source      io.Reader // 非空时从流读取（如上传的表单文件），忽略 FilePath
	Filename    string    // 展示用原始文件名，为空且从路径读取时取 FilePath 的文件名
	PreviewRows int
}

// 事件类型
const (
	EventStart     = "start"
	EventInfo      = "info"
	EventWarning   = "warning"
	EventSheetDone = "sheet_done"
	EventDone      = "done"
	EventError     = "error"
)

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// UploadResult 上传处理结果，对应上传接口的响应体
type UploadResult struct {
	Status   string                      `json:"status"`
	Message  string                      `json:"message"`
	Preview  map[string][]map[string]any `json:"preview"`
	Mapping  parser.ValidationResult     `json:"mapping"`
	Stats    parser.Stats                `json:"stats"`
	Load     *LoadResult                 `json:"load"`
	Duration time.Duration               `json:"-"`
}

// Import 执行导入，返回进度通道。终止事件（done/error）一定送达，除非 ctx 取消。
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doImport(ctx, opts, progressChan)
	}()

	return progressChan
}

// Run 同步执行导入，返回最终结果
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions) (*UploadResult, error) {
	var (
		result *UploadResult
		err    error
	)
	for evt := range c.Import(ctx, opts) {
		switch evt.Type {
		case EventDone:
			result, _ = evt.Data.(*UploadResult)
		case EventError:
			if e, ok := evt.Data.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%s", evt.Message)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("import finished without result")
	}
	return result, nil
}

func (c *Coordinator) doImport(ctx context.Context, opts ImportOptions, ch chan ProgressEvent) {
	startTime := time.Now()
	log := logging.Component("importer")

	filename := opts.Filename
	if filename == "" && opts.Source == nil {
		filename = filepath.Base(opts.FilePath)
	}

	c.sendProgress(ch, ProgressEvent{
		Type:      EventStart,
		Message:   "Processing workbook",
		Data:      map[string]string{"filename": filename},
		Timestamp: time.Now(),
	})

	wb, size, hash, openErr := openSource(opts)
	if wb != nil {
		defer wb.Close()
	}
	logID, err := c.store.CreateImportLog(ctx, filename, size, hash)
	if err != nil {
		log.Warn().Err(err).Msg("import log not recorded")
	}

	fail := func(err error) {
		log.Error().Err(err).Str("file", filename).Msg("import failed")
		if logID > 0 {
			if lerr := c.store.CompleteImportLog(context.WithoutCancel(ctx), logID, 0, 0, store.ImportStatusFailed, err.Error()); lerr != nil {
				log.Warn().Err(lerr).Msg("import log not updated")
			}
		}
		c.sendFinal(ctx, ch, ProgressEvent{
			Type:      EventError,
			Message:   err.Error(),
			Data:      err,
			Timestamp: time.Now(),
		})
	}

	if openErr != nil {
		fail(openErr)
		return
	}

	validation := wb.ValidateStructure()
	for _, w := range validation.Warnings {
		c.sendProgress(ch, ProgressEvent{Type: EventWarning, Message: w, Timestamp: time.Now()})
	}
	for _, e := range validation.Errors {
		c.sendProgress(ch, ProgressEvent{Type: EventWarning, Message: e, Timestamp: time.Now()})
	}

	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = 5
	}
	preview := wb.Preview(previewRows)
	stats := wb.Stats()
	sheets := wb.Read()

	c.sendProgress(ch, ProgressEvent{
		Type:      EventInfo,
		Message:   fmt.Sprintf("Read %d of %d expected sheets", len(sheets), len(parser.ExpectedSheets())),
		Data:      stats,
		Timestamp: time.Now(),
	})

	load, err := c.loader.Load(ctx, sheets)
	if err != nil {
		fail(err)
		return
	}

	for _, target := range sheetTargets {
		n, ok := load.Tables[target.Table]
		if !ok {
			continue
		}
		c.sendProgress(ch, ProgressEvent{
			Type:    EventSheetDone,
			Message: fmt.Sprintf("Sheet \"%s\" loaded: %d rows", target.Sheet, n),
			Data: map[string]interface{}{
				"sheet_name": target.Sheet,
				"table":      target.Table,
				"rows":       n,
			},
			Timestamp: time.Now(),
		})
	}

	if logID > 0 {
		if err := c.store.CompleteImportLog(ctx, logID, load.FactTables(), load.TotalRows(), store.ImportStatusSuccess, ""); err != nil {
			log.Warn().Err(err).Msg("import log not updated")
		}
	}

	result := &UploadResult{
		Status:   "ok",
		Message:  "Data uploaded and ingested successfully",
		Preview:  preview,
		Mapping:  validation,
		Stats:    stats,
		Load:     load,
		Duration: time.Since(startTime),
	}

	log.Info().
		Str("file", filename).
		Int("tables", load.FactTables()).
		Int("rows", load.TotalRows()).
		Dur("duration", result.Duration).
		Msg("import done")

	c.sendFinal(ctx, ch, ProgressEvent{
		Type:      EventDone,
		Message:   result.Message,
		Data:      result,
		Timestamp: time.Now(),
	})
}

// openSource 打开工作簿并计算大小与 sha256；流式来源在解析读取时顺带计算
func openSource(opts ImportOptions) (*parser.Workbook, int64, string, error) {
	if opts.Source == nil {
		size, hash := fileFingerprint(opts.FilePath)
		wb, err := parser.OpenWorkbook(opts.FilePath)
		return wb, size, hash, err
	}

	h := sha256.New()
	var n byteCounter
	wb, err := parser.OpenWorkbookReader(io.TeeReader(opts.Source, io.MultiWriter(h, &n)))
	return wb, int64(n), hex.EncodeToString(h.Sum(nil)), err
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

// fileFingerprint 文件大小与 sha256；失败时返回零值
func fileFingerprint(path string) (int64, string) {
	f, err := os.Open(path)
	if err != nil {
		return 0, ""
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return n, ""
	}
	return n, hex.EncodeToString(h.Sum(nil))
}

// sendProgress 发送进度事件
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
		// 通道已满，丢弃事件
	}
}

// sendFinal 发送终止事件，阻塞直到送达或 ctx 取消
func (c *Coordinator) sendFinal(ctx context.Context, ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}
