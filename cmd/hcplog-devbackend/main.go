// Package main runs a local stand-in for the interaction backend.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/hcplog/internal/config"
	"github.com/thebtf/hcplog/internal/devbackend/extract"
	"github.com/thebtf/hcplog/internal/devbackend/lexicon"
	"github.com/thebtf/hcplog/internal/devbackend/server"
	"github.com/thebtf/hcplog/internal/devbackend/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	addr := flag.String("addr", "", "Listen address (default from settings)")
	dbPath := flag.String("db", "", "SQLite database path (default from settings)")
	lexiconPath := flag.String("lexicon", "", "Extraction lexicon YAML (default: built-in)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if *addr != "" {
		cfg.DevAddr = *addr
	}
	if *dbPath != "" {
		cfg.DevDBPath = *dbPath
	}
	if *lexiconPath != "" {
		cfg.LexiconPath = *lexiconPath
	}

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LexiconPath).Msg("Failed to load lexicon")
	}

	gormLevel := logger.Silent
	if *debug {
		gormLevel = logger.Info
	}
	st, err := store.NewStore(store.Config{Path: cfg.DevDBPath, LogLevel: gormLevel})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DevDBPath).Msg("Failed to initialize store")
	}
	defer st.Close()

	svc := server.New(st, extract.New(lex))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down development backend")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	log.Info().Str("version", Version).Str("db", cfg.DevDBPath).Msg("Starting development backend")
	if err := svc.Start(cfg.DevAddr); err != nil {
		log.Fatal().Err(err).Msg("Development backend error")
	}
}
