package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"authorsite/api/internal/broadcast"
	"authorsite/api/internal/config"
	"authorsite/api/internal/contact"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/logging"
	"authorsite/api/internal/media"
	"authorsite/api/internal/newsletter"
	"authorsite/api/internal/site"
	"authorsite/api/internal/store"
)

// environment holds the stores a command works on. It is opened per command and
// closed when the command returns.
type environment struct {
	cfg    config.Config
	logger *zap.Logger
	kv     *localstore.KV
	db     *sql.DB
	pg     *store.PostgresStore
	relay  *broadcast.RedisRelay

	facade     *site.Facade
	stopFacade func()
}

func openEnvironment(ctx context.Context, cfg config.Config) (*environment, error) {
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return nil, err
	}
	// Keep command output readable; only warnings reach stderr.
	logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))

	env := &environment{cfg: cfg, logger: logger}
	env.kv, err = localstore.NewKV(cfg.DataDir, cfg.LocalQuotaBytes)
	if err != nil {
		return nil, err
	}
	if cfg.RemoteConfigured() {
		env.db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		env.pg = store.NewPostgresStore(env.db)
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		env.relay, err = broadcast.NewRedisRelay(cfg.RedisURL, broadcast.NewBus(logger), logger)
		if err != nil {
			env.close()
			return nil, err
		}
	}
	return env, nil
}

// contentFacade starts a façade over the configured backend and waits for its first
// load.
func (e *environment) contentFacade(ctx context.Context) (*site.Facade, error) {
	if e.facade != nil {
		return e.facade, nil
	}
	uploader, err := media.NewUploader(e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	backend := site.SelectBackend(e.cfg, localstore.NewContentStore(e.kv, e.logger), e.pg)
	facade := site.NewFacade(backend, broadcast.NewBus(e.logger), uploader, e.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = facade.Run(runCtx)
		close(done)
	}()
	e.stopFacade = func() {
		cancel()
		<-done
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	defer waitCancel()
	if err := facade.WaitReady(waitCtx); err != nil {
		e.stopFacade()
		e.stopFacade = nil
		return nil, fmt.Errorf("load content: %w", err)
	}
	e.facade = facade
	return facade, nil
}

// announce tells running API instances that key changed. Instances sharing the local
// data directory notice through their file watcher, so only the relay needs a nudge.
func (e *environment) announce(ctx context.Context, key string) {
	if e.relay == nil {
		return
	}
	if err := e.relay.Announce(ctx, key, "sitectl"); err != nil {
		e.logger.Warn("notify running instances", zap.Error(err))
	}
}

func (e *environment) contactService() *contact.Service {
	var s contact.Store = contact.NewKVStore(e.kv)
	if e.pg != nil {
		s = e.pg
	}
	return contact.NewService(s, e.logger)
}

func (e *environment) newsletter() *newsletter.List {
	return newsletter.NewList(e.kv, e.logger)
}

func (e *environment) close() {
	if e.stopFacade != nil {
		e.stopFacade()
	}
	if e.relay != nil {
		_ = e.relay.Close()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.logger.Sync()
}

// withEnvironment opens the environment for the duration of fn.
func (o *rootOptions) withEnvironment(ctx context.Context, fn func(*environment) error) error {
	env, err := openEnvironment(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer env.close()
	return fn(env)
}
