package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"msgport/internal/broker"
	"msgport/internal/config"
	"msgport/internal/control"
	"msgport/internal/devices"
	"msgport/internal/journal"
	"msgport/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the msgportd runtime loop and blocks until a signal or a
// control-plane Stop request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := writePIDFile(cfg.PIDPath()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.PIDPath())

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg)
		if err != nil {
			logger.Error("open delivery journal", logging.Error(err))
			return err
		}
		defer store.Close()

		if cfg.Journal.RetentionDays > 0 {
			removed, purgeErr := store.PurgeOlderThanDays(signalCtx, cfg.Journal.RetentionDays)
			if purgeErr != nil {
				logger.Warn("journal retention purge failed", logging.Error(purgeErr))
			} else if removed > 0 {
				logger.Info("journal retention purge",
					logging.String(logging.FieldEventType, "journal_retention_purge"),
					logging.Int64("removed_count", removed))
			}
		}
	}

	b, err := broker.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}
	if err := broker.RegisterBuiltins(b); err != nil {
		return fmt.Errorf("register builtin services: %w", err)
	}

	deviceSvc := devices.NewService(cfg, logger)
	if deviceSvc != nil {
		if err := b.Register(deviceSvc); err != nil {
			return fmt.Errorf("register device service: %w", err)
		}
	}

	if err := b.Start(signalCtx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	defer b.Close()

	if deviceSvc != nil {
		if err := deviceSvc.Start(signalCtx); err != nil {
			logger.Warn("device monitor start failed", logging.Error(err))
		}
		defer deviceSvc.Stop()
	}

	controlServer, err := control.NewServer(signalCtx, cfg.ControlSocketPath(), b, cancel, logger)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer controlServer.Close()
	controlServer.Serve()

	logger.Info("msgport daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("control_socket", cfg.ControlSocketPath()),
		logging.Int("services", len(b.Services())))

	<-signalCtx.Done()
	logger.Info("msgport daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
