package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxPosts  = "site_posts"
	idxBooks  = "site_books"
	idxEvents = "site_events"
)

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili indexes site records in Meilisearch and queries them.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	once    sync.Once

	// indexed tracks the ids pushed to each index so entities removed from the
	// document can be deleted on the next sync.
	mu      sync.Mutex
	indexed map[string]map[int64]struct{}
}

// NewMeili connects to Meilisearch and configures the site indexes. An unreachable
// server is not an error: the health loop keeps probing and configures the indexes
// once it recovers.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client:  client,
		logger:  logger.Named("meili"),
		done:    make(chan struct{}),
		indexed: map[string]map[int64]struct{}{},
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{uid: idxPosts, filterable: []string{"featured", "date"}, searchable: []string{"title", "description", "content"}},
		{uid: idxBooks, filterable: []string{}, searchable: []string{"title"}},
		{uid: idxEvents, filterable: []string{"date"}, searchable: []string{"name", "description", "location"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.logger.Debug("create index", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the post, book and event indexes (or the one selected by
// q.FilterType) and concatenates their hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	for _, ti := range []struct {
		uid  string
		rtyp ResultType
	}{
		{idxPosts, ResultPost},
		{idxBooks, ResultBook},
		{idxEvents, ResultEvent},
	} {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Query:                 q.Text,
			Limit:                 limit,
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, total, nil
}

// Sync pushes every record and removes the ones indexed by a previous sync that are
// no longer part of the document.
func (m *Meili) Sync(records Records) error {
	if !m.healthy.Load() {
		return errUnhealthy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if err := m.syncIndex(idxPosts, records.Posts, postIDs(records.Posts)); err != nil {
		errs = append(errs, err)
	}
	if err := m.syncIndex(idxBooks, records.Books, bookIDs(records.Books)); err != nil {
		errs = append(errs, err)
	}
	if err := m.syncIndex(idxEvents, records.Events, eventIDs(records.Events)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Meili) syncIndex(uid string, docs any, ids []int64) error {
	index := m.client.Index(uid)
	if len(ids) > 0 {
		if _, err := index.AddDocuments(docs, nil); err != nil {
			return fmt.Errorf("index %s: %w", uid, err)
		}
	}

	current := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		current[id] = struct{}{}
	}
	for _, id := range staleIDs(m.indexed[uid], current) {
		if _, err := index.DeleteDocument(strconv.FormatInt(id, 10), nil); err != nil {
			return fmt.Errorf("delete %d from %s: %w", id, uid, err)
		}
	}
	m.indexed[uid] = current
	return nil
}

func staleIDs(previous, current map[int64]struct{}) []int64 {
	var stale []int64
	for id := range previous {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

func postIDs(posts []PostRecord) []int64 {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func bookIDs(books []BookRecord) []int64 {
	ids := make([]int64, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}

func eventIDs(events []EventRecord) []int64 {
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxPosts:
		return ResultPost
	case idxBooks:
		return ResultBook
	case idxEvents:
		return ResultEvent
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeInt(hit, "id"), Date: decodeString(hit, "date")}
	switch rtyp {
	case ResultPost:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	case ResultBook:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	case ResultEvent:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

// decodeFormattedString reads the highlighted value of key. Non-string formatted
// fields (ids, booleans) are skipped.
func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
