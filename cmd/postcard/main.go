package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/postcard/app/api"
	"github.com/lysyi3m/postcard/app/cache"
	"github.com/lysyi3m/postcard/app/cfg"
	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/discord"
	"github.com/lysyi3m/postcard/app/feed"
	"github.com/lysyi3m/postcard/app/postcard"
	"github.com/lysyi3m/postcard/app/tasks"
)

type storage struct {
	posts        database.PostRepository
	state        database.StateRepository
	destinations database.DestinationRepository
	health       api.Pinger
	close        func() error
}

func main() {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if config == nil {
		return
	}

	logCloser, err := cfg.SetupLogger(config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = run(config)
	if err != nil {
		slog.Error("Postcard stopped with error", "error", err)
	}
	logCloser.Close()

	if err != nil {
		os.Exit(1)
	}
}

func run(config *cfg.Cfg) error {
	slog.Info("Starting Postcard", "version", config.Version, "storage", config.Storage)

	store, err := openStorage(config)
	if err != nil {
		return err
	}
	defer store.close()

	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, feed.NewParser(), config.UserAgent, time.Duration(config.FetchTimeout)*time.Second)
	resolver := postcard.NewResolver(store.posts, fetcher, feed.NewNormalizer(), postcard.FeedURL, time.Now)
	service := postcard.NewService(resolver, store.state, store.destinations, config.Version)

	bot, err := discord.NewBot(config.DiscordToken, config.CommandPrefix, config.OwnerID, service)
	if err != nil {
		return err
	}

	poster := postcard.NewAutoPoster(resolver, store.state, store.destinations, bot)
	scheduler := tasks.NewScheduler(poster, resolver, bot.Ready(), time.Duration(config.SchedulerInterval)*time.Second)

	if err := bot.Open(); err != nil {
		return err
	}
	defer bot.Close()

	scheduler.Start()
	defer scheduler.Stop()

	generator := feed.NewGenerator("Postcard", postcard.SiteURL, "Daily postcards cached by Postcard", config.Version)
	handler := api.NewHandler(service, store.health, scheduler, generator)
	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler, config.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Postcard started")

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return runErr
}

func openStorage(config *cfg.Cfg) (*storage, error) {
	switch config.Storage {
	case cfg.StorageRedis:
		c, err := cache.NewCache(config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		return &storage{
			posts:        c,
			state:        c,
			destinations: c,
			health:       c,
			close:        c.Close,
		}, nil

	default:
		db, err := database.NewConnection(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("Connected to SQLite", "path", config.DBPath, "schema_version", version, "dirty", dirty)

		return &storage{
			posts:        database.NewPostRepository(db),
			state:        database.NewStateRepository(db),
			destinations: database.NewDestinationRepository(db),
			health:       db,
			close:        db.Close,
		}, nil
	}
}
