package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/logging"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/server"
	"github.com/IntuitiveResearch/PowerBI-Demo/internal/util"
)

var (
	servePort    int
	serveDev     bool
	serveDataDir string
	serveOpen    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP API. The warehouse schema is recreated on startup, so
data must be uploaded again after every restart.

Example:
  starkpi serve --port 8001
  starkpi serve --dev --data-dir ./data --open`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"listen port (ignored when config.toml sets server.port)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false,
		"development mode (gin debug logging)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "",
		"data directory (overrides config)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false,
		"open the API root in a browser once listening")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 && !cfgInfo.PortSpecified {
		cfg.Server.Port = servePort
	}
	if serveDev {
		cfg.Server.DevMode = true
	}
	if serveDataDir != "" {
		cfg.Data.DataDir = serveDataDir
	}

	if !util.PortAvailable(cfg.Server.Port) {
		return fmt.Errorf("port %d is already in use", cfg.Server.Port)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Server.Port).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	url := fmt.Sprintf("http://localhost:%d/api/", cfg.Server.Port)
	if serveOpen {
		if err := util.OpenURL(url); err != nil {
			logging.Warn().Err(err).Str("url", url).Msg("could not open browser")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info().Msg("API server stopped")
	return nil
}
