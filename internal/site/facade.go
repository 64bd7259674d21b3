// Package site owns the in-memory content document. A Facade is a single goroutine
// that loads the document from the active backend, applies writes one at a time and
// hands readers immutable snapshots.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"authorsite/api/internal/broadcast"
	"authorsite/api/internal/content"
	"authorsite/api/internal/imagenorm"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/media"
	"authorsite/api/internal/util"

	"go.uber.org/zap"
)

// ErrStopped is returned by commands sent to a façade whose Run has returned.
var ErrStopped = errors.New("content facade stopped")

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Snapshot is a point-in-time view of the document. Version increases every time the
// content changes.
type Snapshot struct {
	Content content.Document
	Version uint64
	State   State
	Kind    Kind
}

func (s Snapshot) IsLoading() bool {
	return s.State != StateReady
}

// SaveResult describes a successful save.
type SaveResult struct {
	Size    int
	Version uint64
}

func (r SaveResult) SizeInMB() string {
	return content.SizeInMB(r.Size)
}

// ImageUploader stores an uploaded image and returns where it can be fetched from.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, profile imagenorm.Profile) (media.Upload, error)
}

type Facade struct {
	id       string
	backend  Backend
	bus      *broadcast.Bus
	uploader ImageUploader
	logger   *zap.Logger

	cmds    chan func(*state)
	ready   chan struct{}
	done    chan struct{}
	started atomic.Bool

	snap atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// state is owned by the Run goroutine.
type state struct {
	doc     content.Document
	version uint64
}

func NewFacade(backend Backend, bus *broadcast.Bus, uploader ImageUploader, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = broadcast.NewBus(logger)
	}
	f := &Facade{
		id:       util.NewID("facade"),
		backend:  backend,
		bus:      bus,
		uploader: uploader,
		logger:   logger.With(zap.String("backend", backend.Kind().String())),
		cmds:     make(chan func(*state)),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		subs:     make(map[int]chan Snapshot),
	}
	f.snap.Store(&Snapshot{Content: content.Defaults(), State: StateUninitialized, Kind: backend.Kind()})
	return f
}

// ID identifies this façade as the origin of the events it publishes.
func (f *Facade) ID() string {
	return f.id
}

func (f *Facade) Kind() Kind {
	return f.backend.Kind()
}

// Run loads the document and serves commands and change events until ctx is
// cancelled. It must be called exactly once.
func (f *Facade) Run(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("content facade already running")
	}
	defer close(f.done)

	events, cancel := f.bus.Subscribe(16)
	defer cancel()

	st := &state{doc: content.Defaults()}
	f.publish(st, StateLoading)
	st.doc = f.initialLoad(ctx)
	st.version = 1
	f.publish(st, StateReady)
	close(f.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-f.cmds:
			cmd(st)
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Key != localstore.ContentKey || event.Origin == f.id {
				continue
			}
			f.reload(ctx, st, event)
		}
	}
}

func (f *Facade) initialLoad(ctx context.Context) content.Document {
	doc, found, err := f.backend.Load(ctx)
	if err != nil {
		f.logger.Error("load content, using defaults", zap.Error(err))
		return content.Defaults()
	}
	f.logger.Info("content loaded", zap.Bool("stored", found))
	return doc
}

// reload re-reads the backend after a change made elsewhere. The version only moves
// when the content actually differs.
func (f *Facade) reload(ctx context.Context, st *state, event broadcast.Event) {
	f.publish(st, StateLoading)
	defer f.publish(st, StateReady)

	doc, _, err := f.backend.Load(ctx)
	if err != nil {
		f.logger.Warn("reload content, keeping current document", zap.Stringer("source", event.Source), zap.Error(err))
		return
	}
	if content.Equal(doc, st.doc) {
		return
	}
	st.doc = doc
	st.version++
	f.logger.Info("content reloaded", zap.Stringer("source", event.Source), zap.Uint64("version", st.version))
}

func (f *Facade) publish(st *state, s State) {
	snap := &Snapshot{Content: st.doc.Clone(), Version: st.version, State: s, Kind: f.backend.Kind()}
	f.snap.Store(snap)

	f.subsMu.Lock()
	defer f.subsMu.Unlock()
	for _, ch := range f.subs {
		// Keep only the latest snapshot for slow subscribers.
		select {
		case ch <- *snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- *snap:
		default:
		}
	}
}

// Snapshot returns the latest published snapshot.
func (f *Facade) Snapshot() Snapshot {
	return *f.snap.Load()
}

// Content returns the current document.
func (f *Facade) Content() content.Document {
	return f.Snapshot().Content
}

func (f *Facade) IsLoading() bool {
	return f.Snapshot().IsLoading()
}

// Subscribe delivers every snapshot published after the call; a slow subscriber only
// sees the latest one. cancel releases the subscription.
func (f *Facade) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	f.subsMu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.subsMu.Lock()
			delete(f.subs, id)
			f.subsMu.Unlock()
		})
	}
}

// WaitReady blocks until the first load finished.
func (f *Facade) WaitReady(ctx context.Context) error {
	select {
	case <-f.ready:
		return nil
	case <-f.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the façade goroutine and waits for its result.
func (f *Facade) do(ctx context.Context, fn func(*state) error) error {
	errc := make(chan error, 1)
	cmd := func(st *state) { errc <- fn(st) }
	select {
	case f.cmds <- cmd:
	case <-f.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveContent replaces the whole document. Items without an id get one, the document
// is validated and persisted, and only then becomes current; on any error the previous
// document stays in place.
func (f *Facade) SaveContent(ctx context.Context, doc content.Document) (SaveResult, error) {
	var result SaveResult
	err := f.do(ctx, func(st *state) error {
		var err error
		result, err = f.save(ctx, st, doc)
		return err
	})
	return result, err
}

// UpdateSection shallow-merges partial into one section of the current document and
// saves the result.
func (f *Facade) UpdateSection(ctx context.Context, name content.SectionName, partial json.RawMessage) (SaveResult, error) {
	var result SaveResult
	err := f.do(ctx, func(st *state) error {
		merged, err := content.MergeSection(st.doc, name, partial)
		if err != nil {
			return err
		}
		result, err = f.save(ctx, st, merged)
		return err
	})
	return result, err
}

func (f *Facade) save(ctx context.Context, st *state, doc content.Document) (SaveResult, error) {
	next := doc.Clone()
	content.AssignIDs(&next)
	if err := content.Validate(next); err != nil {
		return SaveResult{}, err
	}
	encoded, err := content.Encode(next)
	if err != nil {
		return SaveResult{}, err
	}
	if err := f.backend.Save(ctx, next); err != nil {
		f.logger.Warn("save content", zap.Int("bytes", len(encoded)), zap.Error(err))
		return SaveResult{}, err
	}

	next.SchemaVersion = content.SchemaVersion
	st.doc = next
	st.version++
	f.publish(st, StateReady)
	f.bus.Publish(broadcast.Event{Key: localstore.ContentKey, Origin: f.id, Source: broadcast.SourceFacade})
	f.logger.Info("content saved", zap.Int("bytes", len(encoded)), zap.Uint64("version", st.version))
	return SaveResult{Size: len(encoded), Version: st.version}, nil
}

// ResetContent discards the stored document and goes back to the defaults.
func (f *Facade) ResetContent(ctx context.Context) (uint64, error) {
	var version uint64
	err := f.do(ctx, func(st *state) error {
		if err := f.backend.Reset(ctx); err != nil {
			return err
		}
		st.doc = content.Defaults()
		st.version++
		version = st.version
		f.publish(st, StateReady)
		f.bus.Publish(broadcast.Event{Key: localstore.ContentKey, Origin: f.id, Source: broadcast.SourceFacade})
		f.logger.Info("content reset", zap.Uint64("version", st.version))
		return nil
	})
	return version, err
}

// UploadImage normalizes and stores an image. It does not touch the document; the
// returned URL is written into a section by a later save.
func (f *Facade) UploadImage(ctx context.Context, data []byte, profile imagenorm.Profile) (media.Upload, error) {
	if f.uploader == nil {
		return media.Upload{}, errors.New("image uploads are not configured")
	}
	return f.uploader.Upload(ctx, data, profile)
}
