package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/uzlow/webtools/internal/config"
	"github.com/uzlow/webtools/internal/logger"
	"github.com/uzlow/webtools/internal/metrics"
	"github.com/uzlow/webtools/pkg/dispatch"
	"github.com/uzlow/webtools/pkg/manifest"
	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/server"
	"github.com/uzlow/webtools/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webtools HTTP service",
	Long: `Start the webtools HTTP service. Tools are discovered from the
built-in set and the configured manifest directory, then exposed at
POST /t/{name}/run.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	l, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()
	log := l.Zerolog()

	m := metrics.New()

	toolCfg := tools.Config{
		OctraRPCURL: cfg.Tools.OctraRPCURL,
		HTTPTimeout: time.Duration(cfg.Tools.HTTPTimeoutSeconds) * time.Second,
	}

	table := manifest.NewHandlerTable()
	if err := tools.BindEntrypoints(table, toolCfg); err != nil {
		return err
	}

	source := registry.MultiSource{
		tools.Source(toolCfg),
		manifest.NewDir(cfg.Tools.ManifestDir, table, log),
	}

	reg := registry.New(source, log)
	if err := reg.Load(cmd.Context()); err != nil {
		return fmt.Errorf("initial registry load failed: %w", err)
	}
	m.ObserveRegistry(reg.Len(), len(reg.Rejections()))

	reload := func() error {
		if err := reg.Load(context.Background()); err != nil {
			return err
		}
		m.ObserveRegistry(reg.Len(), len(reg.Rejections()))
		m.ObserveReload()
		return nil
	}

	dispatcher := dispatch.New(reg, log, dispatch.Options{
		Timeout:  time.Duration(cfg.Tools.ExecuteTimeoutSeconds) * time.Second,
		Observer: m,
	})

	srv, err := server.New(server.Options{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, reg, dispatcher, m.Handler(), log)
	if err != nil {
		return err
	}

	if cfg.Tools.Watch {
		watcher, err := manifest.NewWatcher(manifest.WatcherConfig{
			Dir:      cfg.Tools.ManifestDir,
			OnReload: reload,
		}, log)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			// The manifest dir may not exist yet; watching is best-effort.
			log.Warn().Err(err).Msg("Manifest watching disabled")
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	if cfg.Tools.ReloadSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Tools.ReloadSchedule, func() {
			if err := reload(); err != nil {
				log.Error().Err(err).Msg("Scheduled reload failed")
			}
		}); err != nil {
			return fmt.Errorf("invalid reload schedule: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Str("schedule", cfg.Tools.ReloadSchedule).Msg("Scheduled registry reload enabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-errCh:
			return err
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				log.Info().Msg("SIGHUP received, reloading registry")
				if err := reload(); err != nil {
					log.Error().Err(err).Msg("Reload failed")
				}
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			return srv.Stop()
		}
	}
}
