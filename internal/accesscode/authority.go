package accesscode

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Store persists the current daily code and its audit trail.
type Store interface {
	Current(ctx context.Context) (*DailyCode, error)
	Save(ctx context.Context, code DailyCode) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Authority issues and validates the rotating daily access code.
type Authority struct {
	store    Store
	fallback string
	logger   *zap.Logger

	now      func() time.Time
	randCode func() string
}

// NewAuthority builds a code authority. fallbackCode is the
// operator-configured constant accepted when the daily code is absent or
// expired; empty means none is configured.
func NewAuthority(store Store, fallbackCode string, logger *zap.Logger) *Authority {
	if fallbackCode != "" {
		fallbackCode = Normalize(fallbackCode)
	}
	return &Authority{
		store:    store,
		fallback: fallbackCode,
		logger:   logger,
		now:      time.Now,
		randCode: func() string { return fmt.Sprintf("%04d", rand.IntN(10000)) },
	}
}

// Issue sets the current daily code, overwriting any previous one. An empty
// explicitCode generates a uniformly random 4-digit code. The audit action
// is "generated" for random codes with no predecessor, "created" for an
// explicit first code, and "updated" for any overwrite.
func (a *Authority) Issue(ctx context.Context, explicitCode, adminID string) (DailyCode, error) {
	prev, err := a.store.Current(ctx)
	if err != nil {
		return DailyCode{}, fmt.Errorf("load current code: %w", err)
	}

	value := explicitCode
	if value == "" {
		value = a.randCode()
	}
	now := a.now()
	code := DailyCode{
		Code:      Normalize(value),
		CreatedAt: now,
		ExpiresAt: expiryAfter(now),
		CreatedBy: adminID,
	}
	if err := a.store.Save(ctx, code); err != nil {
		return DailyCode{}, fmt.Errorf("save code: %w", err)
	}

	action := ActionUpdated
	if prev == nil {
		action = ActionCreated
		if explicitCode == "" {
			action = ActionGenerated
		}
	}
	entry := AuditEntry{Code: code.Code, Action: action, AdminID: adminID, Timestamp: now}
	if err := a.store.AppendAudit(ctx, entry); err != nil {
		return DailyCode{}, fmt.Errorf("append audit: %w", err)
	}

	a.logger.Info("daily code issued",
		zap.String("action", action),
		zap.String("admin_id", adminID),
		zap.Time("expires_at", code.ExpiresAt))
	return code, nil
}

// Validate checks a submitted code against the current daily code, falling
// back to the operator-configured constant. Comparison is always on the
// zero-padded string forms, never numeric.
func (a *Authority) Validate(ctx context.Context, submitted string) (Result, error) {
	current, err := a.store.Current(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load current code: %w", err)
	}

	now := a.now()
	padded := Normalize(submitted)
	res := a.check(current, padded, now)
	validations.WithLabelValues(res.Status.String()).Inc()
	return res, nil
}

func (a *Authority) check(current *DailyCode, padded string, now time.Time) Result {
	if current != nil && !current.Expired(now) {
		if padded == Normalize(current.Code) {
			return Result{Status: StatusValid}
		}
		if a.fallback != "" && padded == a.fallback {
			return Result{Status: StatusValid}
		}
		return Result{Status: StatusInvalid, Reason: ReasonMismatch}
	}

	// No current code, or it is expired: only the fallback can admit.
	if a.fallback == "" {
		return Result{Status: StatusUnavailable, Reason: ReasonUnavailable}
	}
	if padded == a.fallback {
		return Result{Status: StatusValid}
	}
	if current != nil {
		return Result{Status: StatusInvalid, Reason: ReasonExpired}
	}
	return Result{Status: StatusInvalid, Reason: ReasonMismatch}
}

// Audit returns the most recent audit entries, newest first, capped at 100.
func (a *Authority) Audit(ctx context.Context) ([]AuditEntry, error) {
	return a.store.RecentAudit(ctx, auditCap)
}

const auditCap = 100
