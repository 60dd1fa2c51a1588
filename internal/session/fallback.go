package session

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Mirror is the read side of the secondary cache.
type Mirror interface {
	ActiveByID(ctx context.Context, id string) (Session, error)
	ListActive(ctx context.Context) ([]Session, error)
	ListCompleted(ctx context.Context, limit, offset int) ([]Session, error)
}

// ChainStore layers the redis mirror under the Postgres repository. Reads
// fall back to the mirror when the primary errors; writes go to the primary
// only and are echoed into the mirror later by the worker. A failed primary
// write is surfaced immediately, never retried here and never absorbed by
// the mirror.
type ChainStore struct {
	primary Store
	cache   Mirror
	logger  *zap.Logger
}

// NewChainStore builds the primary/secondary chain. cache may be nil, in
// which case reads have no fallback.
func NewChainStore(primary Store, cache Mirror, logger *zap.Logger) *ChainStore {
	return &ChainStore{primary: primary, cache: cache, logger: logger}
}

// CreateActive writes the primary only.
func (s *ChainStore) CreateActive(ctx context.Context, sess Session) error {
	return s.primary.CreateActive(ctx, sess)
}

// InsertCompleted writes the primary only.
func (s *ChainStore) InsertCompleted(ctx context.Context, sess Session) error {
	return s.primary.InsertCompleted(ctx, sess)
}

// CompleteActive writes the primary only.
func (s *ChainStore) CompleteActive(ctx context.Context, completed Session) error {
	return s.primary.CompleteActive(ctx, completed)
}

// ActiveByID reads the primary, falling back to the mirror on storage
// failure. A clean ErrNotActive from the primary is authoritative and does
// not consult the mirror.
func (s *ChainStore) ActiveByID(ctx context.Context, id string) (Session, error) {
	sess, err := s.primary.ActiveByID(ctx, id)
	if err == nil || errors.Is(err, ErrNotActive) || s.cache == nil {
		return sess, err
	}
	s.logger.Warn("primary active read failed, using mirror", zap.Error(err), zap.String("session_id", id))
	fallbackReads.Inc()
	return s.cache.ActiveByID(ctx, id)
}

// ListActive reads the primary, falling back to the mirror.
func (s *ChainStore) ListActive(ctx context.Context) ([]Session, error) {
	sessions, err := s.primary.ListActive(ctx)
	if err == nil || s.cache == nil {
		return sessions, err
	}
	s.logger.Warn("primary active list failed, using mirror", zap.Error(err))
	fallbackReads.Inc()
	return s.cache.ListActive(ctx)
}

// ListCompleted reads the primary, falling back to the mirror.
func (s *ChainStore) ListCompleted(ctx context.Context, limit, offset int) ([]Session, error) {
	sessions, err := s.primary.ListCompleted(ctx, limit, offset)
	if err == nil || s.cache == nil {
		return sessions, err
	}
	s.logger.Warn("primary completed list failed, using mirror", zap.Error(err))
	fallbackReads.Inc()
	return s.cache.ListCompleted(ctx, limit, offset)
}
