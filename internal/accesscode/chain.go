package accesscode

import (
	"context"

	"go.uber.org/zap"
)

// CodeCache is the secondary cache surface for the daily code.
type CodeCache interface {
	Get(ctx context.Context) (*DailyCode, error)
	Set(ctx context.Context, code DailyCode) error
}

// ChainStore layers the redis cache under the Postgres repository: reads
// fall back to the cache when the primary errors, writes target the primary
// and refresh the cache best-effort. Only reads fall back; a failed primary
// write is surfaced, never absorbed by the cache.
type ChainStore struct {
	primary Store
	cache   CodeCache
	logger  *zap.Logger
}

// NewChainStore builds the primary/secondary chain. cache may be nil.
func NewChainStore(primary Store, cache CodeCache, logger *zap.Logger) *ChainStore {
	return &ChainStore{primary: primary, cache: cache, logger: logger}
}

// Current reads from the primary, falling back to the cache on failure.
// An empty or failing cache does not soften the storage fault: "no code
// issued" is only ever reported by a healthy read, so an outage cannot
// masquerade as a missing code.
func (s *ChainStore) Current(ctx context.Context) (*DailyCode, error) {
	code, err := s.primary.Current(ctx)
	if err == nil {
		return code, nil
	}
	if s.cache == nil {
		return nil, err
	}
	s.logger.Warn("primary code read failed, using cache", zap.Error(err))
	fallbackReads.Inc()
	cached, cerr := s.cache.Get(ctx)
	if cerr != nil || cached == nil {
		// Report the primary failure; the cache miss is secondary.
		return nil, err
	}
	return cached, nil
}

// Save writes the primary, then refreshes the cache best-effort.
func (s *ChainStore) Save(ctx context.Context, code DailyCode) error {
	if err := s.primary.Save(ctx, code); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, code); err != nil {
			s.logger.Warn("code cache refresh failed", zap.Error(err))
		}
	}
	return nil
}

// AppendAudit writes to the primary only; the audit trail is not cached.
func (s *ChainStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	return s.primary.AppendAudit(ctx, entry)
}

// RecentAudit reads from the primary only.
func (s *ChainStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	return s.primary.RecentAudit(ctx, limit)
}
