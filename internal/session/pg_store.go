package session

import (
	"context"
	"time"

	"github.com/lemmaiot-tech/neka/internal/store"
)

// pgBackend is the slice of the request store the fallback needs.
type pgBackend interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

// PGStore keeps refresh sessions in Postgres when Redis is not available.
// It exposes the same surface as RedisStore so the app layer does not care
// which one it got.
type PGStore struct {
	backend pgBackend
}

func NewPGStore(backend pgBackend) *PGStore {
	return &PGStore{backend: backend}
}

func (s *PGStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	return s.backend.SaveRefreshSession(ctx, tokenHash, user.ID, expiresAt)
}

func (s *PGStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	return s.backend.LookupRefreshSession(ctx, tokenHash)
}

func (s *PGStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.backend.RevokeRefreshSession(ctx, tokenHash)
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
