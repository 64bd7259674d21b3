package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"authorsite/api/internal/app"
	"authorsite/api/internal/auth"
	"authorsite/api/internal/broadcast"
	"authorsite/api/internal/config"
	"authorsite/api/internal/contact"
	"authorsite/api/internal/email"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/logging"
	"authorsite/api/internal/media"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/render"
	"authorsite/api/internal/search"
	"authorsite/api/internal/session"
	"authorsite/api/internal/site"
	"authorsite/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.Must(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	kv, err := localstore.NewKV(cfg.DataDir, cfg.LocalQuotaBytes)
	if err != nil {
		return err
	}
	bus := broadcast.NewBus(logger)
	checks := map[string]app.Pinger{}

	var pg *store.PostgresStore
	if cfg.RemoteConfigured() {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err := store.MigrateUp(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		logger.Info("database ready", zap.Strings("migrations_applied", applied))
		pg = store.NewPostgresStore(db)
		checks["database"] = pg
	}

	g, gctx := errgroup.WithContext(ctx)

	watcher, err := localstore.NewWatcher(cfg.DataDir, bus, logger)
	if err != nil {
		return err
	}
	g.Go(func() error { return watcher.Run(gctx) })

	var sessions auth.SessionStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		sessionStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer sessionStore.Close()
		sessions = sessionStore

		relay, err := broadcast.NewRedisRelay(cfg.RedisURL, bus, logger)
		if err != nil {
			return err
		}
		defer relay.Close()
		checks["redis"] = relay
		g.Go(func() error {
			// Losing the relay only stops cross-instance refreshes.
			if err := relay.Run(gctx); err != nil {
				logger.Warn("content relay stopped", zap.Error(err))
			}
			return nil
		})
	}

	uploader, err := media.NewUploader(cfg, logger)
	if err != nil {
		return err
	}
	backend := site.SelectBackend(cfg, localstore.NewContentStore(kv, logger), pg)
	facade := site.NewFacade(backend, bus, uploader, logger)
	g.Go(func() error { return facade.Run(gctx) })
	logger.Info("content backend selected", zap.String("backend", backend.Kind().String()))

	var contactStore contact.Store = contact.NewKVStore(kv)
	if pg != nil {
		contactStore = pg
	}
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	contactService := contact.NewService(contactStore, logger).WithNotifier(mailer, cfg.ContactNotifyTo)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, logger)
	snapshots, unsubscribe := facade.Subscribe()
	defer unsubscribe()
	g.Go(func() error {
		searchService.Follow(gctx, snapshots)
		return nil
	})

	admin, err := auth.NewAdmin(auth.AdminConfig{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.TokenSecret,
		TTL:          cfg.TokenTTL,
		Sessions:     sessions,
	})
	if err != nil {
		return err
	}

	httpServer := app.NewHTTPServer(app.Dependencies{
		Config:     cfg,
		Logger:     logger,
		Facade:     facade,
		Contact:    contactService,
		Newsletter: newsletter.NewList(kv, logger),
		Search:     searchService,
		Renderer:   render.NewRenderer(),
		Admin:      admin,
		Checks:     checks,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(httpServer.CloseStreams)

	g.Go(func() error {
		logger.Info("site API listening",
			zap.String("addr", cfg.Addr),
			zap.String("cors_origin", cfg.CORSOrigin),
			zap.Bool("smtp", mailer.IsConfigured()),
			zap.Bool("minio", uploader.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		contactService.Wait()
		return nil
	})

	return g.Wait()
}
