package localstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"authorsite/api/internal/content"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContentStore(t *testing.T, quota int) (*ContentStore, *KV) {
	t.Helper()
	kv, err := NewKV(t.TempDir(), quota)
	require.NoError(t, err)
	return NewContentStore(kv, nil), kv
}

func TestContentStoreLoadMissingReturnsDefaults(t *testing.T) {
	store, _ := newContentStore(t, 0)

	doc, found, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), doc))
}

func TestContentStoreLoadMalformedReturnsDefaults(t *testing.T) {
	store, kv := newContentStore(t, 0)
	require.NoError(t, kv.Set(ContentKey, []byte(`{"heroSection":`)))

	doc, found, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), doc))
}

func TestContentStoreRoundTrip(t *testing.T) {
	store, _ := newContentStore(t, 0)
	ctx := context.Background()

	doc := content.Defaults()
	doc.Hero.Title = "Nueva portada"
	doc.Books.Books = []content.Book{
		{ID: 2, Title: "Segundo", CoverImage: "data:image/jpeg;base64,AAAA"},
		{ID: 1, Title: "Primero"},
	}
	require.NoError(t, store.Save(ctx, doc))

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	want := doc.Clone()
	want.SchemaVersion = content.SchemaVersion
	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Fatalf("loaded document mismatch (-want +got):\n%s", diff)
	}
}

func TestContentStoreRejectsOversizedDocument(t *testing.T) {
	store, _ := newContentStore(t, 0)
	ctx := context.Background()

	original := content.Defaults()
	original.Hero.Title = "Guardado"
	require.NoError(t, store.Save(ctx, original))

	huge := original.Clone()
	huge.Gallery.Images = []content.Image{{ID: 1, Image: strings.Repeat("A", content.MaxDocumentBytes)}}

	err := store.Save(ctx, huge)
	var capacity *content.CapacityError
	require.True(t, errors.As(err, &capacity))
	assert.Greater(t, capacity.Size, content.MaxDocumentBytes)

	loaded, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Guardado", loaded.Hero.Title)
	assert.Empty(t, loaded.Gallery.Images)
}

func TestContentStoreQuotaBecomesStorageError(t *testing.T) {
	store, _ := newContentStore(t, 64)

	err := store.Save(context.Background(), content.Defaults())
	var storageErr *content.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Contains(t, storageErr.Message, "localStorage lleno")
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
}

func TestContentStoreReset(t *testing.T) {
	store, _ := newContentStore(t, 0)
	ctx := context.Background()

	doc := content.Defaults()
	doc.About.Title = "Otra"
	require.NoError(t, store.Save(ctx, doc))
	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.Reset(ctx))

	loaded, found, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), loaded))
}
