package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"authorsite/api/internal/content"

	"golang.org/x/sync/errgroup"
)

// Section keys of section_settings rows.
const (
	settingsBooks    = "books"
	settingsGallery  = "gallery"
	settingsServices = "services"
	settingsBlog     = "blog"
)

var contentTables = []string{
	"hero_section", "about_section", "section_settings", "books", "gallery_images",
	"events", "services", "blog_posts", "social_networks",
}

// LoadContent assembles the document from the content tables, one query per table.
// Sections without rows keep their defaults; found reports whether any row existed.
func (s *PostgresStore) LoadContent(ctx context.Context) (content.Document, bool, error) {
	doc := content.Defaults()
	var hits [9]bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { hits[0], err = s.loadHero(gctx, &doc.Hero); return })
	g.Go(func() (err error) { hits[1], err = s.loadAbout(gctx, &doc.About); return })
	g.Go(func() (err error) { hits[2], err = s.loadSettings(gctx, &doc); return })
	g.Go(func() (err error) { hits[3], err = s.loadBooks(gctx, &doc.Books.Books); return })
	g.Go(func() (err error) { hits[4], err = s.loadGallery(gctx, &doc.Gallery.Images); return })
	g.Go(func() (err error) { hits[5], err = s.loadEvents(gctx, &doc.Events.Events); return })
	g.Go(func() (err error) { hits[6], err = s.loadServices(gctx, &doc.Services.Services); return })
	g.Go(func() (err error) { hits[7], err = s.loadPosts(gctx, &doc.Blog.Posts); return })
	g.Go(func() (err error) { hits[8], err = s.loadNetworks(gctx, &doc.Social.Networks); return })
	if err := g.Wait(); err != nil {
		return content.Document{}, false, err
	}

	found := false
	for _, hit := range hits {
		found = found || hit
	}
	return doc, found, nil
}

func (s *PostgresStore) loadHero(ctx context.Context, hero *content.HeroSection) (bool, error) {
	var row content.HeroSection
	err := s.db.QueryRowContext(ctx, `
		SELECT title, description, background_image_desktop, background_image_mobile, logo_image, button_text
		FROM hero_section WHERE id = 1
	`).Scan(&row.Title, &row.Description, &row.BackgroundImageDesktop, &row.BackgroundImageMobile, &row.LogoImage, &row.ButtonText)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load hero_section: %w", err)
	}
	*hero = row
	return true, nil
}

func (s *PostgresStore) loadAbout(ctx context.Context, about *content.AboutSection) (bool, error) {
	var (
		row   content.AboutSection
		image sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT title, biography, author_image FROM about_section WHERE id = 1`).
		Scan(&row.Title, &row.Biography, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load about_section: %w", err)
	}
	row.AuthorImage = nullableString(image)
	*about = row
	return true, nil
}

// loadSettings only touches title and button fields, never the item lists the other
// loaders fill concurrently.
func (s *PostgresStore) loadSettings(ctx context.Context, doc *content.Document) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT section, title, button_text FROM section_settings`)
	if err != nil {
		return false, fmt.Errorf("load section_settings: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var section, title, buttonText string
		if err := rows.Scan(&section, &title, &buttonText); err != nil {
			return false, fmt.Errorf("scan section_settings: %w", err)
		}
		found = true
		switch section {
		case settingsBooks:
			doc.Books.Title = title
		case settingsGallery:
			doc.Gallery.Title = title
		case settingsServices:
			doc.Services.Title, doc.Services.ButtonText = title, buttonText
		case settingsBlog:
			doc.Blog.Title, doc.Blog.ButtonText = title, buttonText
		}
	}
	return found, rows.Err()
}

// loadList runs an ordered collection query and scans each row with scan.
func (s *PostgresStore) loadList(ctx context.Context, table, columns string, scan func(*sql.Rows) error) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY position, id`, columns, table))
	if err != nil {
		return false, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		if err := scan(rows); err != nil {
			return false, fmt.Errorf("scan %s: %w", table, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("load %s: %w", table, err)
	}
	return found, nil
}

func (s *PostgresStore) loadBooks(ctx context.Context, out *[]content.Book) (bool, error) {
	items := make([]content.Book, 0)
	found, err := s.loadList(ctx, "books", "title, cover_image, purchase_link", func(rows *sql.Rows) error {
		var b content.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.CoverImage, &b.PurchaseLink); err != nil {
			return err
		}
		items = append(items, b)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

func (s *PostgresStore) loadGallery(ctx context.Context, out *[]content.Image) (bool, error) {
	items := make([]content.Image, 0)
	found, err := s.loadList(ctx, "gallery_images", "image", func(rows *sql.Rows) error {
		var img content.Image
		if err := rows.Scan(&img.ID, &img.Image); err != nil {
			return err
		}
		items = append(items, img)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

func (s *PostgresStore) loadEvents(ctx context.Context, out *[]content.Event) (bool, error) {
	items := make([]content.Event, 0)
	found, err := s.loadList(ctx, "events", "name, description, event_date, event_time, location", func(rows *sql.Rows) error {
		var e content.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.Date, &e.Time, &e.Location); err != nil {
			return err
		}
		items = append(items, e)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

func (s *PostgresStore) loadServices(ctx context.Context, out *[]content.Service) (bool, error) {
	items := make([]content.Service, 0)
	found, err := s.loadList(ctx, "services", "title, description, icon", func(rows *sql.Rows) error {
		var svc content.Service
		if err := rows.Scan(&svc.ID, &svc.Title, &svc.Description, &svc.Icon); err != nil {
			return err
		}
		items = append(items, svc)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

func (s *PostgresStore) loadPosts(ctx context.Context, out *[]content.Post) (bool, error) {
	items := make([]content.Post, 0)
	found, err := s.loadList(ctx, "blog_posts", "title, description, content, post_date, featured, featured_image", func(rows *sql.Rows) error {
		var (
			p     content.Post
			image sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Content, &p.Date, &p.Featured, &image); err != nil {
			return err
		}
		p.FeaturedImage = nullableString(image)
		items = append(items, p)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

func (s *PostgresStore) loadNetworks(ctx context.Context, out *[]content.Network) (bool, error) {
	items := make([]content.Network, 0)
	found, err := s.loadList(ctx, "social_networks", "name, icon, link", func(rows *sql.Rows) error {
		var n content.Network
		if err := rows.Scan(&n.ID, &n.Name, &n.Icon, &n.Link); err != nil {
			return err
		}
		items = append(items, n)
		return nil
	})
	if found {
		*out = items
	}
	return found, err
}

// SaveContent writes doc in one transaction. Collections are diffed against the stored
// ids: rows whose id left the document are deleted, every present item is upserted
// with its position. Any failure rolls the whole save back.
func (s *PostgresStore) SaveContent(ctx context.Context, doc content.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin content tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hero_section (id, title, description, background_image_desktop, background_image_mobile, logo_image, button_text, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			background_image_desktop = EXCLUDED.background_image_desktop,
			background_image_mobile = EXCLUDED.background_image_mobile,
			logo_image = EXCLUDED.logo_image,
			button_text = EXCLUDED.button_text,
			updated_at = NOW()
	`, doc.Hero.Title, doc.Hero.Description, doc.Hero.BackgroundImageDesktop, doc.Hero.BackgroundImageMobile, doc.Hero.LogoImage, doc.Hero.ButtonText); err != nil {
		return fmt.Errorf("save hero_section: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO about_section (id, title, biography, author_image, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			biography = EXCLUDED.biography,
			author_image = EXCLUDED.author_image,
			updated_at = NOW()
	`, doc.About.Title, doc.About.Biography, doc.About.AuthorImage); err != nil {
		return fmt.Errorf("save about_section: %w", err)
	}

	for _, setting := range sectionSettings(doc) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO section_settings (section, title, button_text, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (section) DO UPDATE SET
				title = EXCLUDED.title,
				button_text = EXCLUDED.button_text,
				updated_at = NOW()
		`, setting.section, setting.title, setting.buttonText); err != nil {
			return fmt.Errorf("save section_settings %s: %w", setting.section, err)
		}
	}

	for _, c := range collections(doc) {
		if err := syncCollection(ctx, tx, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit content tx: %w", err)
	}
	return nil
}

// ResetContent empties every content table so the next load yields the defaults.
func (s *PostgresStore) ResetContent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE `+strings.Join(contentTables, ", ")); err != nil {
		return fmt.Errorf("reset content: %w", err)
	}
	return nil
}

type sectionSetting struct {
	section    string
	title      string
	buttonText string
}

func sectionSettings(doc content.Document) []sectionSetting {
	return []sectionSetting{
		{section: settingsBooks, title: doc.Books.Title},
		{section: settingsGallery, title: doc.Gallery.Title},
		{section: settingsServices, title: doc.Services.Title, buttonText: doc.Services.ButtonText},
		{section: settingsBlog, title: doc.Blog.Title, buttonText: doc.Blog.ButtonText},
	}
}

// collection is one list section flattened to table rows. Each row holds the item
// id followed by the values of columns; position is the row index.
type collection struct {
	table   string
	columns []string
	rows    [][]any
}

func (c *collection) add(id int64, values ...any) {
	c.rows = append(c.rows, append([]any{id}, values...))
}

func (c collection) ids() []int64 {
	ids := make([]int64, 0, len(c.rows))
	for _, row := range c.rows {
		ids = append(ids, row[0].(int64))
	}
	return ids
}

func collections(doc content.Document) []collection {
	books := collection{table: "books", columns: []string{"title", "cover_image", "purchase_link"}}
	for _, b := range doc.Books.Books {
		books.add(b.ID, b.Title, b.CoverImage, b.PurchaseLink)
	}
	gallery := collection{table: "gallery_images", columns: []string{"image"}}
	for _, img := range doc.Gallery.Images {
		gallery.add(img.ID, img.Image)
	}
	events := collection{table: "events", columns: []string{"name", "description", "event_date", "event_time", "location"}}
	for _, e := range doc.Events.Events {
		events.add(e.ID, e.Name, e.Description, e.Date, e.Time, e.Location)
	}
	services := collection{table: "services", columns: []string{"title", "description", "icon"}}
	for _, svc := range doc.Services.Services {
		services.add(svc.ID, svc.Title, svc.Description, svc.Icon)
	}
	posts := collection{table: "blog_posts", columns: []string{"title", "description", "content", "post_date", "featured", "featured_image"}}
	for _, p := range doc.Blog.Posts {
		posts.add(p.ID, p.Title, p.Description, p.Content, p.Date, p.Featured, p.FeaturedImage)
	}
	networks := collection{table: "social_networks", columns: []string{"name", "icon", "link"}}
	for _, n := range doc.Social.Networks {
		networks.add(n.ID, n.Name, n.Icon, n.Link)
	}
	return []collection{books, gallery, events, services, posts, networks}
}

func syncCollection(ctx context.Context, tx *sql.Tx, c collection) error {
	existing, err := existingIDs(ctx, tx, c.table)
	if err != nil {
		return err
	}
	for _, id := range planDeletes(existing, c.ids()) {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, c.table), id); err != nil {
			return fmt.Errorf("delete from %s: %w", c.table, err)
		}
	}
	query := upsertSQL(c.table, c.columns)
	for position, row := range c.rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, row[0], position)
		args = append(args, row[1:]...)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert %s %v: %w", c.table, row[0], err)
		}
	}
	return nil
}

func existingIDs(ctx context.Context, tx *sql.Tx, table string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", table, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// planDeletes returns the ids of existing in their stored order that keep lacks.
func planDeletes(existing, keep []int64) []int64 {
	wanted := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		wanted[id] = struct{}{}
	}
	var deletes []int64
	for _, id := range existing {
		if _, ok := wanted[id]; !ok {
			deletes = append(deletes, id)
		}
	}
	return deletes
}

// upsertSQL builds the insert-or-update statement for a collection table. Parameters
// are id, position, then columns in order.
func upsertSQL(table string, columns []string) string {
	all := append([]string{"id", "position"}, columns...)
	placeholders := make([]string, len(all))
	for i := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(all)-1)
	for _, column := range all[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(all, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
