package search

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/lemmaiot-tech/neka/internal/store"
)

// RequestReader hydrates search hits and serves the Postgres fallback.
type RequestReader interface {
	GetRequest(ctx context.Context, requestID string) (store.Request, error)
	SearchRequests(ctx context.Context, query string, limit int) ([]store.Request, error)
}

// Service is the facade that tries Meilisearch first and falls back to
// a Postgres ILIKE scan. meili may be nil when not configured.
type Service struct {
	meili  *Meili
	reader RequestReader
}

func NewService(meili *Meili, reader RequestReader) *Service {
	return &Service{meili: meili, reader: reader}
}

// Search returns the requests matching the query, best match first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.Request, error) {
	if limit <= 0 {
		limit = 50
	}

	if s.meili != nil && s.meili.Healthy() {
		ids, err := s.meili.SearchIDs(query, limit)
		if err == nil {
			return s.hydrate(ctx, ids)
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	return s.reader.SearchRequests(ctx, query, limit)
}

func (s *Service) hydrate(ctx context.Context, ids []string) ([]store.Request, error) {
	items := make([]store.Request, 0, len(ids))
	for _, id := range ids {
		item, err := s.reader.GetRequest(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			// Index can lag deletes and reindexing; a stale hit is skipped.
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// IndexRequest pushes a request into the index, fire-and-forget.
func (s *Service) IndexRequest(request store.Request) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromRequest(request)
	go func() {
		if err := s.meili.IndexRequest(record); err != nil {
			log.Printf("search: index request %s: %v", record.ID, err)
		}
	}()
}

// ReindexAll pushes every stored request into Meilisearch. Called at
// startup so the index catches up after downtime.
func (s *Service) ReindexAll(requests []store.Request) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := make([]RequestRecord, 0, len(requests))
	for _, request := range requests {
		records = append(records, RecordFromRequest(request))
	}
	if err := s.meili.IndexRequests(records); err != nil {
		log.Printf("search: reindex requests: %v", err)
	}
}
