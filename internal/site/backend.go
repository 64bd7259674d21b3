package site

import (
	"context"

	"authorsite/api/internal/config"
	"authorsite/api/internal/content"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/store"
)

// Kind names the store a façade reads from and writes to.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	if k == KindRemote {
		return "remote"
	}
	return "local"
}

// Backend persists the whole document. Load reports found=false when nothing has been
// saved yet, returning the defaults.
type Backend interface {
	Kind() Kind
	Load(ctx context.Context) (content.Document, bool, error)
	Save(ctx context.Context, doc content.Document) error
	Reset(ctx context.Context) error
}

type localBackend struct {
	store *localstore.ContentStore
}

func NewLocalBackend(s *localstore.ContentStore) Backend {
	return localBackend{store: s}
}

func (localBackend) Kind() Kind { return KindLocal }

func (b localBackend) Load(ctx context.Context) (content.Document, bool, error) {
	return b.store.Load(ctx)
}

func (b localBackend) Save(ctx context.Context, doc content.Document) error {
	return b.store.Save(ctx, doc)
}

func (b localBackend) Reset(ctx context.Context) error {
	return b.store.Reset(ctx)
}

type remoteBackend struct {
	store *store.PostgresStore
}

func NewRemoteBackend(s *store.PostgresStore) Backend {
	return remoteBackend{store: s}
}

func (remoteBackend) Kind() Kind { return KindRemote }

func (b remoteBackend) Load(ctx context.Context) (content.Document, bool, error) {
	return b.store.LoadContent(ctx)
}

func (b remoteBackend) Save(ctx context.Context, doc content.Document) error {
	if err := b.store.SaveContent(ctx, doc); err != nil {
		return &content.StorageError{Message: "Error al guardar en la base de datos", Err: err}
	}
	return nil
}

func (b remoteBackend) Reset(ctx context.Context) error {
	return b.store.ResetContent(ctx)
}

// SelectBackend chooses the backend once at startup: the remote store when a database
// is configured and connected, the local store otherwise.
func SelectBackend(cfg config.Config, local *localstore.ContentStore, remote *store.PostgresStore) Backend {
	if cfg.RemoteConfigured() && remote != nil {
		return NewRemoteBackend(remote)
	}
	return NewLocalBackend(local)
}
