// Package main provides the interactive entry point for hcplog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/hcplog/internal/config"
	"github.com/thebtf/hcplog/internal/console"
	"github.com/thebtf/hcplog/internal/session"
	"github.com/thebtf/hcplog/internal/sse"
	"github.com/thebtf/hcplog/internal/watcher"
	"github.com/thebtf/hcplog/pkg/backend"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	backendURL := flag.String("backend", "", "Backend base URL (default from settings)")
	addr := flag.String("addr", "", "Address of the state stream; \"off\" disables it")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	// Console output owns stdout, so log to stderr
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	setLogLevel(cfg.LogLevel, *debug)

	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if *addr != "" {
		cfg.SSEAddr = *addr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down")
		cancel()
	}()

	client := backend.NewClient(cfg.BackendURL,
		backend.WithUserID(int(cfg.UserID)),
		backend.WithTimeout(cfg.Timeout()),
	)
	if err := client.Health(ctx); err != nil {
		log.Warn().Err(err).Str("url", client.BaseURL()).Msg("Backend not reachable, requests will fail until it is up")
	}

	ctl := session.NewController(session.NewStore(), client,
		session.WithUpdatedDisplay(cfg.UpdatedDisplay()),
		session.WithContactRedaction(cfg.RedactContacts),
	)

	startConfigWatcher(*debug)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return console.New(ctl, os.Stdout).Run(gctx, os.Stdin)
	})

	if cfg.SSEAddr != "off" {
		broadcaster := sse.NewBroadcaster(func() (string, any) {
			return snapshotEvent, ctl.Snapshot()
		})
		unsubscribe := ctl.Subscribe(func(snap session.Snapshot) {
			broadcaster.Publish(snapshotEvent, snap)
		})
		defer unsubscribe()

		srv := &http.Server{
			Addr:              cfg.SSEAddr,
			Handler:           newStateRouter(ctl, broadcaster),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.SSEAddr).Msg("State stream listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Debug().Str("version", Version).Str("backend", client.BaseURL()).Msg("Session started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("hcplog stopped")
	}
}

// setLogLevel applies the configured level; --debug always wins.
func setLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// startConfigWatcher reloads settings when the file changes.
// Only the log level takes effect without a restart.
func startConfigWatcher(debug bool) {
	configPath := config.SettingsPath()
	w, err := watcher.New(configPath, func(ev watcher.Event) {
		if ev == watcher.Removed {
			log.Warn().Str("path", configPath).Msg("Settings file removed, keeping current settings")
			return
		}
		cfg, err := config.Reload()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to reload settings")
			return
		}
		setLogLevel(cfg.LogLevel, debug)
		log.Info().Str("path", configPath).Str("logLevel", cfg.LogLevel).Msg("Settings reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start config watcher")
		return
	}
	log.Debug().Str("path", configPath).Msg("Config file watcher started")
}
