package site

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"authorsite/api/internal/broadcast"
	"authorsite/api/internal/content"
	"authorsite/api/internal/imagenorm"
	"authorsite/api/internal/localstore"
	"authorsite/api/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeBackend struct {
	mu      sync.Mutex
	doc     *content.Document
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (b *fakeBackend) Kind() Kind { return KindRemote }

func (b *fakeBackend) Load(ctx context.Context) (content.Document, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.loadErr != nil {
		return content.Document{}, false, b.loadErr
	}
	if b.doc == nil {
		return content.Defaults(), false, nil
	}
	return b.doc.Clone(), true, nil
}

func (b *fakeBackend) Save(ctx context.Context, doc content.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	stored := doc.Clone()
	b.doc = &stored
	return nil
}

func (b *fakeBackend) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = nil
	return nil
}

type fakeUploader struct {
	profile imagenorm.Profile
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, profile imagenorm.Profile) (media.Upload, error) {
	u.profile = profile
	return media.Upload{URL: "https://cdn.example.com/x.jpg", Stored: true}, nil
}

// verifyNoLeaks checks for leaked goroutines after every other cleanup has run.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { goleak.VerifyNone(t) })
}

// startFacade runs f until the test ends.
func startFacade(t *testing.T, f *Facade) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, f.WaitReady(waitCtx))
}

func newLocalFacade(t *testing.T, dir string, bus *broadcast.Bus) *Facade {
	t.Helper()
	kv, err := localstore.NewKV(dir, 0)
	require.NoError(t, err)
	return NewFacade(NewLocalBackend(localstore.NewContentStore(kv, nil)), bus, nil, nil)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func TestFacadeStartsUninitializedThenLoadsStoredDocument(t *testing.T) {
	verifyNoLeaks(t)

	stored := content.Defaults()
	stored.Hero.Title = "Guardado"
	backend := &fakeBackend{doc: &stored}
	f := NewFacade(backend, nil, nil, nil)
	assert.Equal(t, StateUninitialized, f.Snapshot().State)
	assert.True(t, f.IsLoading())

	startFacade(t, f)

	snap := f.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "Guardado", snap.Content.Hero.Title)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, KindRemote, snap.Kind)
}

func TestFacadeLoadFailureDegradesToDefaults(t *testing.T) {
	verifyNoLeaks(t)

	f := NewFacade(&fakeBackend{loadErr: errors.New("connection refused")}, nil, nil, nil)
	startFacade(t, f)

	assert.False(t, f.IsLoading())
	assert.True(t, content.Equal(content.Defaults(), f.Content()))
}

func TestSaveContentAssignsIDsAndBroadcasts(t *testing.T) {
	verifyNoLeaks(t)

	bus := broadcast.NewBus(nil)
	events, cancel := bus.Subscribe(4)
	defer cancel()

	backend := &fakeBackend{}
	f := NewFacade(backend, bus, nil, nil)
	startFacade(t, f)

	doc := f.Content()
	doc.Books.Books = []content.Book{{Title: "Sin id"}}
	res, err := f.SaveContent(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
	assert.Greater(t, res.Size, 0)

	saved := f.Content()
	require.Len(t, saved.Books.Books, 1)
	assert.NotZero(t, saved.Books.Books[0].ID)

	event := <-events
	assert.Equal(t, localstore.ContentKey, event.Key)
	assert.Equal(t, f.ID(), event.Origin)
	assert.Equal(t, broadcast.SourceFacade, event.Source)
	assert.Equal(t, 1, backend.saves)
}

func TestSaveFailureKeepsPreviousDocument(t *testing.T) {
	verifyNoLeaks(t)

	backend := &fakeBackend{}
	f := NewFacade(backend, nil, nil, nil)
	startFacade(t, f)
	before := f.Snapshot()

	backend.mu.Lock()
	backend.saveErr = &content.StorageError{Message: "disco lleno"}
	backend.mu.Unlock()

	doc := f.Content()
	doc.Hero.Title = "No guardado"
	_, err := f.SaveContent(context.Background(), doc)
	var storageErr *content.StorageError
	require.True(t, errors.As(err, &storageErr))

	after := f.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Content.Hero.Title, after.Content.Hero.Title)
}

func TestSaveRejectsInvalidDocument(t *testing.T) {
	verifyNoLeaks(t)

	backend := &fakeBackend{}
	f := NewFacade(backend, nil, nil, nil)
	startFacade(t, f)

	doc := f.Content()
	doc.Events.Events = []content.Event{{ID: 1, Name: "Sin fecha"}}
	_, err := f.SaveContent(context.Background(), doc)
	var validation *content.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Zero(t, backend.saves)
}

func TestLocalCapacityRejectionLeavesStoreUnchanged(t *testing.T) {
	verifyNoLeaks(t)

	dir := t.TempDir()
	f := newLocalFacade(t, dir, nil)
	startFacade(t, f)

	doc := f.Content()
	doc.Gallery.Images = []content.Image{{ID: 1, Image: strings.Repeat("A", content.MaxDocumentBytes)}}
	_, err := f.SaveContent(context.Background(), doc)
	var capacity *content.CapacityError
	require.True(t, errors.As(err, &capacity))
	assert.Empty(t, f.Content().Gallery.Images)

	kv, err := localstore.NewKV(dir, 0)
	require.NoError(t, err)
	_, found, err := kv.Get(localstore.ContentKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpdateSectionPreservesOrderAndIDs(t *testing.T) {
	verifyNoLeaks(t)

	dir := t.TempDir()
	f := newLocalFacade(t, dir, nil)
	startFacade(t, f)
	ctx := context.Background()

	doc := f.Content()
	doc.Books.Books = []content.Book{{ID: 30, Title: "C"}, {ID: 10, Title: "A"}, {ID: 20, Title: "B"}}
	_, err := f.SaveContent(ctx, doc)
	require.NoError(t, err)

	_, err = f.UpdateSection(ctx, content.SectionBooks, json.RawMessage(`{"title":"Libros"}`))
	require.NoError(t, err)

	kv, err := localstore.NewKV(dir, 0)
	require.NoError(t, err)
	loaded, found, err := localstore.NewContentStore(kv, nil).Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Libros", loaded.Books.Title)
	assert.Equal(t, []content.Book{{ID: 30, Title: "C"}, {ID: 10, Title: "A"}, {ID: 20, Title: "B"}}, loaded.Books.Books)
}

func TestUpdateSectionRejectsUnknownShape(t *testing.T) {
	verifyNoLeaks(t)

	f := NewFacade(&fakeBackend{}, nil, nil, nil)
	startFacade(t, f)

	_, err := f.UpdateSection(context.Background(), content.SectionHero, json.RawMessage(`[1,2]`))
	var validation *content.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestTwoFacadesConverge(t *testing.T) {
	verifyNoLeaks(t)

	dir := t.TempDir()
	bus := broadcast.NewBus(nil)
	writer := newLocalFacade(t, dir, bus)
	reader := newLocalFacade(t, dir, bus)
	startFacade(t, writer)
	startFacade(t, reader)

	doc := writer.Content()
	doc.About.Title = "Sobre el autor"
	_, err := writer.SaveContent(context.Background(), doc)
	require.NoError(t, err)

	eventually(t, func() bool {
		snap := reader.Snapshot()
		return snap.State == StateReady && snap.Content.About.Title == "Sobre el autor"
	})
	assert.Equal(t, uint64(2), reader.Snapshot().Version)
}

func TestReloadWithoutChangesKeepsVersion(t *testing.T) {
	verifyNoLeaks(t)

	bus := broadcast.NewBus(nil)
	backend := &fakeBackend{}
	f := NewFacade(backend, bus, nil, nil)
	startFacade(t, f)

	bus.Publish(broadcast.Event{Key: localstore.ContentKey, Source: broadcast.SourceFile})
	eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.loads == 2
	})
	eventually(t, func() bool { return f.Snapshot().State == StateReady })
	assert.Equal(t, uint64(1), f.Snapshot().Version)

	// events for other keys and from itself are ignored
	bus.Publish(broadcast.Event{Key: "newsletter-subscribers", Source: broadcast.SourceFile})
	bus.Publish(broadcast.Event{Key: localstore.ContentKey, Origin: f.ID(), Source: broadcast.SourceFacade})
	_, err := f.SaveContent(context.Background(), f.Content())
	require.NoError(t, err)
	backend.mu.Lock()
	assert.Equal(t, 2, backend.loads)
	backend.mu.Unlock()
}

func TestResetContentReturnsDefaults(t *testing.T) {
	verifyNoLeaks(t)

	dir := t.TempDir()
	f := newLocalFacade(t, dir, nil)
	startFacade(t, f)
	ctx := context.Background()

	doc := f.Content()
	doc.Hero.Title = "Cambiado"
	_, err := f.SaveContent(ctx, doc)
	require.NoError(t, err)

	version, err := f.ResetContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
	assert.True(t, content.Equal(content.Defaults(), f.Content()))

	kv, err := localstore.NewKV(dir, 0)
	require.NoError(t, err)
	loaded, found, err := localstore.NewContentStore(kv, nil).Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), loaded))
}

func TestSubscribeSeesNewVersions(t *testing.T) {
	verifyNoLeaks(t)

	f := NewFacade(&fakeBackend{}, nil, nil, nil)
	startFacade(t, f)

	snaps, cancel := f.Subscribe()
	defer cancel()

	doc := f.Content()
	doc.Blog.Title = "Diario"
	_, err := f.SaveContent(context.Background(), doc)
	require.NoError(t, err)

	select {
	case snap := <-snaps:
		assert.Equal(t, uint64(2), snap.Version)
		assert.Equal(t, "Diario", snap.Content.Blog.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSnapshotsAreIsolatedFromCallers(t *testing.T) {
	verifyNoLeaks(t)

	stored := content.Defaults()
	stored.Books.Books = []content.Book{{ID: 1, Title: "Uno"}}
	f := NewFacade(&fakeBackend{doc: &stored}, nil, nil, nil)
	startFacade(t, f)

	doc := f.Content()
	doc.Books.Books[0].Title = "Mutado"
	assert.Equal(t, "Uno", f.Content().Books.Books[0].Title)
}

func TestUploadImageDelegatesToUploader(t *testing.T) {
	uploader := &fakeUploader{}
	f := NewFacade(&fakeBackend{}, nil, uploader, nil)

	up, err := f.UploadImage(context.Background(), []byte("img"), imagenorm.Portrait)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/x.jpg", up.URL)
	assert.Equal(t, imagenorm.Portrait, uploader.profile)

	_, err = NewFacade(&fakeBackend{}, nil, nil, nil).UploadImage(context.Background(), nil, imagenorm.Upload)
	assert.Error(t, err)
}

func TestCommandsAfterStopFail(t *testing.T) {
	verifyNoLeaks(t)

	f := NewFacade(&fakeBackend{}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	require.NoError(t, f.WaitReady(context.Background()))
	cancel()
	require.NoError(t, <-done)

	_, err := f.SaveContent(context.Background(), content.Defaults())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, f.Run(context.Background()))
}
