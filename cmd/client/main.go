package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"outpost.world/internal/client"
	"outpost.world/internal/config"
	"outpost.world/internal/persistence/fogcache"
	"outpost.world/internal/persistence/journal"
	"outpost.world/internal/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to client.yaml (default: built-in defaults)")
		url        = flag.String("url", "", "ws url (overrides config)")
		name       = flag.String("name", "", "player name (overrides config)")
		worldID    = flag.String("world", "", "world id (overrides config)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the local fog/session cache")
		noJournal  = flag.Bool("no_journal", false, "disable the inbound event journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*url) != "" {
		cfg.ServerURL = *url
	}
	if strings.TrimSpace(*name) != "" {
		cfg.PlayerName = *name
	}
	if strings.TrimSpace(*worldID) != "" {
		cfg.WorldID = *worldID
	}

	conn := ws.NewClient(ws.Options{
		URL:         cfg.ServerURL,
		PlayerName:  cfg.PlayerName,
		WorldID:     cfg.WorldID,
		BaseDelay:   time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
		CapDelay:    time.Duration(cfg.ReconnectCapMs) * time.Millisecond,
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Logger:      logger,
	})

	c := client.New(cfg, conn, logger)

	if !*noJournal {
		j := journal.New(filepath.Join(*dataDir, "events"))
		defer j.Close()
		c.WithJournal(j)
	}

	if !*disableDB {
		store, err := fogcache.Open(filepath.Join(*dataDir, "cache.db"))
		if err != nil {
			logger.Fatalf("open fog cache: %v", err)
		}
		defer store.Close()
		c.WithStore(store)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Printf("shutting down")
		cancel()
	}()

	logger.Printf("connecting to %s as %q", cfg.ServerURL, cfg.PlayerName)
	if err := c.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("run: %v", err)
	}
}
