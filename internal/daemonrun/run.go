// Package daemonrun assembles and runs the ocrkit daemon process: logging,
// pid file, recognition engine, daemon lifecycle, and the IPC server.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/daemon"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/deps"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ipc"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr/paddle"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/ocr/tesseract"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	Diagnostic bool
}

// Run starts the ocrkit daemon runtime loop and blocks until SIGINT or
// SIGTERM. The IPC server stays up even when the service fails to start so
// the CLI can read the failure and request a restart after fixing the
// configuration.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("daemonrun: nil config")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("ocrkitd-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		debugPath := filepath.Join(cfg.Paths.LogDir, "debug", fmt.Sprintf("ocrkitd-%s.log", runID))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:       "debug",
			Format:      "json",
			OutputPaths: []string{debugPath},
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			logger.Info("diagnostic logging enabled", logging.String("debug_log_path", debugPath))
		}
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update ocrkitd.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "ocrkitd-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "ocrkitd-*.log"},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "ocrkitd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	engine, err := engineFromConfig(cfg)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, engine, logger)
	if err != nil {
		return fmt.Errorf("construct daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("ipc server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("ocrkit daemon shutting down")
	return nil
}

// engineFromConfig builds the recognition engine named in configuration.
func engineFromConfig(cfg *config.Config) (ocr.Engine, error) {
	switch cfg.Engine.Name {
	case "", "tesseract":
		return tesseract.New(tesseract.Options{
			Languages:   cfg.Engine.Languages,
			TessdataDir: cfg.Engine.TessdataDir,
		}), nil
	case "paddle":
		return paddle.New(paddle.Options{
			Command:   cfg.Engine.PaddleCommand,
			Languages: cfg.Engine.Languages,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine.Name)
	}
}

// ensureCurrentLogPointer keeps LogDir/ocrkitd.log pointing at the active
// per-run log file. Falls back to a hard link on filesystems without symlinks.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "ocrkitd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err != nil {
		if err := os.Link(target, current); err != nil {
			return fmt.Errorf("link log pointer: %w", err)
		}
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range deps.Check(cfg) {
		logger.Info("dependency snapshot",
			logging.String("name", status.Name),
			logging.Bool("available", status.Available),
			logging.Bool("optional", status.Optional),
			logging.String("detail", status.Detail),
		)
	}
}
