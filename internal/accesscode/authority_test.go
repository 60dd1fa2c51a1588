package accesscode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	current    *DailyCode
	audit      []AuditEntry
	currentErr error
	saveErr    error
}

func (s *fakeStore) Current(ctx context.Context) (*DailyCode, error) {
	return s.current, s.currentErr
}

func (s *fakeStore) Save(ctx context.Context, code DailyCode) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.current = &code
	return nil
}

func (s *fakeStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	s.audit = append([]AuditEntry{entry}, s.audit...)
	return nil
}

func (s *fakeStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if len(s.audit) > limit {
		return s.audit[:limit], nil
	}
	return s.audit, nil
}

func newTestAuthority(store Store, fallback string, now time.Time) *Authority {
	a := NewAuthority(store, fallback, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

func TestIssueExplicitCodePadsAndSetsExpiry(t *testing.T) {
	store := &fakeStore{}
	issued := time.Date(2024, time.January, 10, 15, 0, 0, 0, time.Local)
	a := newTestAuthority(store, "", issued)

	code, err := a.Issue(context.Background(), "7", "admin-1")
	require.NoError(t, err)
	require.Equal(t, "0007", code.Code)
	require.Equal(t, time.Date(2024, time.January, 12, 0, 0, 0, 0, time.Local), code.ExpiresAt)
	require.Equal(t, "admin-1", code.CreatedBy)

	require.Len(t, store.audit, 1)
	require.Equal(t, ActionCreated, store.audit[0].Action)
}

func TestIssueGeneratedCodeIsFourDigits(t *testing.T) {
	store := &fakeStore{}
	a := newTestAuthority(store, "", time.Now())
	a.randCode = func() string { return "0042" }

	code, err := a.Issue(context.Background(), "", "admin-1")
	require.NoError(t, err)
	require.Equal(t, "0042", code.Code)
	require.Equal(t, ActionGenerated, store.audit[0].Action)
}

func TestIssueOverwriteAuditsUpdated(t *testing.T) {
	store := &fakeStore{}
	a := newTestAuthority(store, "", time.Now())

	_, err := a.Issue(context.Background(), "1111", "admin-1")
	require.NoError(t, err)
	_, err = a.Issue(context.Background(), "2222", "admin-2")
	require.NoError(t, err)

	require.Equal(t, "2222", store.current.Code)
	require.Len(t, store.audit, 2)
	require.Equal(t, ActionUpdated, store.audit[0].Action)
}

func TestValidatePaddingAppliesToBothSides(t *testing.T) {
	now := time.Date(2024, time.January, 10, 16, 0, 0, 0, time.Local)
	store := &fakeStore{current: &DailyCode{Code: "0007", ExpiresAt: expiryAfter(now)}}
	a := newTestAuthority(store, "", now)

	res, err := a.Validate(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, StatusValid, res.Status)

	// Stored value without padding still matches a padded submission.
	store.current.Code = "7"
	res, err = a.Validate(context.Background(), "0007")
	require.NoError(t, err)
	require.Equal(t, StatusValid, res.Status)
}

func TestValidateMismatch(t *testing.T) {
	now := time.Now()
	store := &fakeStore{current: &DailyCode{Code: "1234", ExpiresAt: expiryAfter(now)}}
	a := newTestAuthority(store, "", now)

	res, err := a.Validate(context.Background(), "9999")
	require.NoError(t, err)
	require.Equal(t, StatusInvalid, res.Status)
	require.Equal(t, ReasonMismatch, res.Reason)
}

func TestValidateFallbackAdmitsWhileCurrentCodeLive(t *testing.T) {
	now := time.Now()
	store := &fakeStore{current: &DailyCode{Code: "1234", ExpiresAt: expiryAfter(now)}}
	a := newTestAuthority(store, "9999", now)

	res, err := a.Validate(context.Background(), "9999")
	require.NoError(t, err)
	require.Equal(t, StatusValid, res.Status)
}

func TestValidateExpiredCodeFallsBack(t *testing.T) {
	now := time.Date(2024, time.January, 13, 9, 0, 0, 0, time.Local)
	expired := &DailyCode{Code: "1234", ExpiresAt: time.Date(2024, time.January, 12, 0, 0, 0, 0, time.Local)}

	a := newTestAuthority(&fakeStore{current: expired}, "9999", now)
	res, err := a.Validate(context.Background(), "1234")
	require.NoError(t, err)
	require.Equal(t, StatusInvalid, res.Status)
	require.Equal(t, ReasonExpired, res.Reason)

	res, err = a.Validate(context.Background(), "9999")
	require.NoError(t, err)
	require.Equal(t, StatusValid, res.Status)
}

func TestValidateUnavailableWithoutFallback(t *testing.T) {
	now := time.Now()

	// No code ever issued.
	a := newTestAuthority(&fakeStore{}, "", now)
	res, err := a.Validate(context.Background(), "1234")
	require.NoError(t, err)
	require.Equal(t, StatusUnavailable, res.Status)

	// Expired code, still no fallback configured.
	expired := &DailyCode{Code: "1234", ExpiresAt: now.Add(-time.Hour)}
	a = newTestAuthority(&fakeStore{current: expired}, "", now)
	res, err = a.Validate(context.Background(), "1234")
	require.NoError(t, err)
	require.Equal(t, StatusUnavailable, res.Status)
}

func TestValidateSurfacesStorageFailure(t *testing.T) {
	a := newTestAuthority(&fakeStore{currentErr: errors.New("primary down")}, "", time.Now())
	_, err := a.Validate(context.Background(), "1234")
	require.Error(t, err)
}
