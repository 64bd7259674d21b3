package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"authorsite/api/internal/content"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB returns a freshly migrated database, or skips when none is configured.
func openTestDB(t *testing.T) (*sql.DB, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("SITE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("SITE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)
	require.NoError(t, ApplyMigrations(ctx, db, migrationsDir))
	return db, ctx
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db, ctx := openTestDB(t)

	reverted, err := MigrateDown(ctx, db, migrationsDir, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_contact_messages.up.sql", "0001_content.up.sql"}, reverted)

	applied, err := MigrateUp(ctx, db, migrationsDir)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	// a second pass is a no-op
	applied, err = MigrateUp(ctx, db, migrationsDir)
	require.NoError(t, err)
	assert.Empty(t, applied)

	reverted, err = MigrateDown(ctx, db, migrationsDir, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_contact_messages.up.sql"}, reverted)
	require.NoError(t, ApplyMigrations(ctx, db, migrationsDir))
}

func TestContentRoundTripPostgres(t *testing.T) {
	db, ctx := openTestDB(t)
	s := NewPostgresStore(db)

	doc, found, err := s.LoadContent(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), doc))

	image := "https://cdn.example.com/post.jpg"
	doc.Hero.Title = "Portada"
	doc.Services.ButtonText = "Contratar"
	doc.Books.Books = []content.Book{{ID: 3, Title: "Tres"}, {ID: 1, Title: "Uno"}, {ID: 2, Title: "Dos"}}
	doc.Blog.Posts = []content.Post{{ID: 9, Title: "Entrada", FeaturedImage: &image, Featured: true}}
	require.NoError(t, s.SaveContent(ctx, doc))

	loaded, found, err := s.LoadContent(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	if diff := cmp.Diff(doc.Clone(), loaded); diff != "" {
		t.Fatalf("loaded content mismatch (-want +got):\n%s", diff)
	}

	// removing an item deletes its row and reorders the rest
	doc.Books.Books = []content.Book{{ID: 2, Title: "Dos"}, {ID: 3, Title: "Tres bis"}}
	require.NoError(t, s.SaveContent(ctx, doc))
	loaded, _, err = s.LoadContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Books.Books, loaded.Books.Books)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, s.ResetContent(ctx))
	loaded, found, err = s.LoadContent(ctx)
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, content.Equal(content.Defaults(), loaded))
}

func TestScalarSectionsHaveSingleRow(t *testing.T) {
	db, ctx := openTestDB(t)
	_, err := db.ExecContext(ctx, `INSERT INTO hero_section (id, title) VALUES (2, 'segunda')`)
	assert.Error(t, err)
}

func TestContactMessagesPostgres(t *testing.T) {
	db, ctx := openTestDB(t)
	s := NewPostgresStore(db)

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := ContactMessage{ID: uuid.NewString(), Name: "Ana", Email: "ana@example.com", Message: "Hola", Status: ContactStatusNew, CreatedAt: base}
	phone := "600000000"
	newer := ContactMessage{ID: uuid.NewString(), Name: "Luis", Email: "luis@example.com", Phone: &phone, Message: "Buenas", Status: ContactStatusNew, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.InsertContactMessage(ctx, older))
	require.NoError(t, s.InsertContactMessage(ctx, newer))

	items, err := s.ListContactMessages(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	require.NotNil(t, items[0].Phone)
	assert.Nil(t, items[1].Phone)

	at := base.Add(time.Hour)
	archived, err := s.UpdateContactMessageStatus(ctx, older.ID, ContactStatusArchived, at)
	require.NoError(t, err)
	assert.Equal(t, ContactStatusArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)
	assert.True(t, archived.ArchivedAt.Equal(at))
	assert.Nil(t, archived.DeletedAt)

	items, err = s.ListContactMessages(ctx, ContactStatusArchived)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = s.GetContactMessage(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateContactMessageStatus(ctx, uuid.NewString(), ContactStatusRead, at)
	assert.ErrorIs(t, err, ErrNotFound)
}
