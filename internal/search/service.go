package search

import (
	"context"

	"go.uber.org/zap"

	"authorsite/api/internal/content"
	"authorsite/api/internal/site"
)

// index is the external search engine; *Meili in production.
type index interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	Sync(records Records) error
}

// Service answers searches from Meilisearch when it is healthy and from the
// in-memory records otherwise. Both are refreshed from content snapshots.
type Service struct {
	meili  index
	memory *Memory
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger *zap.Logger) *Service {
	if meili == nil {
		return newService(nil, logger)
	}
	return newService(meili, logger)
}

func newService(idx index, logger *zap.Logger) *Service {
	return &Service{meili: idx, memory: NewMemory(), logger: logger.Named("search")}
}

func (s *Service) Backend() string {
	if s.meili != nil && s.meili.Healthy() {
		return "meilisearch"
	}
	return "memory"
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to memory", zap.Error(err))
	}

	results, total := s.memory.Search(q)
	return Response{Results: results, Total: total, Query: q.Text}
}

// Refresh replaces the searchable records with those of doc and syncs Meilisearch before
// returning. Callers must not run two refreshes at once, or an older document can be
// indexed last.
func (s *Service) Refresh(doc content.Document) {
	records := RecordsFrom(doc)
	s.memory.Set(records)
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.Sync(records); err != nil {
		s.logger.Warn("sync index", zap.Error(err))
	}
}

// Follow refreshes the index from every snapshot received until ctx is done or the
// channel is closed. Snapshots still loading are skipped. Refreshes run one at a time in
// version order; snapshots published during a slow sync collapse into the latest one.
func (s *Service) Follow(ctx context.Context, snapshots <-chan site.Snapshot) {
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.IsLoading() || snap.Version == last {
				continue
			}
			last = snap.Version
			s.Refresh(snap.Content)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
