package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"servetrack/internal/accesscode"
	"servetrack/internal/identity"
)

type fakeStore struct {
	active    map[string]Session
	completed map[string]Session

	createErr   error
	completeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		active:    make(map[string]Session),
		completed: make(map[string]Session),
	}
}

func (s *fakeStore) CreateActive(ctx context.Context, sess Session) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, a := range s.active {
		if a.PersonID == sess.PersonID {
			return ErrActiveSessionExists
		}
	}
	s.active[sess.ID] = sess
	return nil
}

func (s *fakeStore) InsertCompleted(ctx context.Context, sess Session) error {
	s.completed[sess.ID] = sess
	return nil
}

func (s *fakeStore) CompleteActive(ctx context.Context, completed Session) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed[completed.ID] = completed
	delete(s.active, completed.ID)
	return nil
}

func (s *fakeStore) ActiveByID(ctx context.Context, id string) (Session, error) {
	sess, ok := s.active[id]
	if !ok {
		return Session{}, ErrNotActive
	}
	return sess, nil
}

func (s *fakeStore) ListActive(ctx context.Context) ([]Session, error) {
	var out []Session
	for _, sess := range s.active {
		out = append(out, sess)
	}
	return out, nil
}

func (s *fakeStore) ListCompleted(ctx context.Context, limit, offset int) ([]Session, error) {
	var out []Session
	for _, sess := range s.completed {
		out = append(out, sess)
	}
	return out, nil
}

type fakeValidator struct {
	result accesscode.Result
	err    error
	calls  int
}

func (v *fakeValidator) Validate(ctx context.Context, submitted string) (accesscode.Result, error) {
	v.calls++
	return v.result, v.err
}

type fakePromoter struct {
	promoted []string
}

func (p *fakePromoter) PromoteToCommunityService(ctx context.Context, personID string) (identity.Person, error) {
	p.promoted = append(p.promoted, personID)
	return identity.Person{ID: personID, Role: identity.RoleCommunityService}, nil
}

func newTestService(store Store, validator CodeValidator, promoter RolePromoter, now time.Time) *Service {
	svc := NewService(store, validator, promoter, zap.NewNop())
	svc.now = func() time.Time { return now }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
	return svc
}

func volunteer() identity.Person {
	return identity.Person{ID: "p1", Role: identity.RoleVolunteer, DisplayName: "Pat"}
}

func TestCheckInUnsupervisedAutoCompletes(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{}
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.Local)
	svc := newTestService(store, validator, &fakePromoter{}, now)

	sess, err := svc.CheckIn(context.Background(), volunteer(), "Kitchen", "", false)
	require.NoError(t, err)

	require.True(t, sess.IsAutoCompleted)
	require.False(t, sess.IsSupervised)
	require.Equal(t, now, sess.CheckInAt)
	require.NotNil(t, sess.CheckOutAt)
	require.Equal(t, time.Date(2024, time.June, 1, 13, 0, 0, 0, time.Local), *sess.CheckOutAt)
	require.Equal(t, "4.00", sess.HoursWorked)
	require.Equal(t, 5, sess.Rating)

	// No active record ever exists and no code was demanded.
	require.Empty(t, store.active)
	require.Len(t, store.completed, 1)
	require.Zero(t, validator.calls)
}

func TestCheckInMusicianIsUnsupervised(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeValidator{}, &fakePromoter{}, time.Now())

	musician := identity.Person{ID: "m1", Role: identity.RoleMusician}
	sess, err := svc.CheckIn(context.Background(), musician, "Stage", "", false)
	require.NoError(t, err)
	require.True(t, sess.IsAutoCompleted)
	require.Empty(t, store.active)
}

func TestCheckInSupervisedCreatesActive(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.Local)
	svc := newTestService(store, validator, &fakePromoter{}, now)

	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	sess, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)

	require.True(t, sess.IsSupervised)
	require.False(t, sess.IsAutoCompleted)
	require.Nil(t, sess.CheckOutAt)
	require.Empty(t, sess.HoursWorked)
	require.Equal(t, 1, validator.calls)
	require.Len(t, store.active, 1)
	require.Empty(t, store.completed)
}

func TestCheckInRejectedCodePerformsNoWrites(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{
		Status: accesscode.StatusInvalid,
		Reason: accesscode.ReasonMismatch,
	}}
	promoter := &fakePromoter{}
	svc := newTestService(store, validator, promoter, time.Now())

	// Flagged volunteer: code is checked before any promotion or write.
	_, err := svc.CheckIn(context.Background(), volunteer(), "Kitchen", "0000", true)
	var codeErr *accesscode.CodeError
	require.ErrorAs(t, err, &codeErr)
	require.Equal(t, accesscode.ReasonMismatch, codeErr.Reason)

	require.Empty(t, store.active)
	require.Empty(t, store.completed)
	require.Empty(t, promoter.promoted)
}

func TestCheckInUnavailableCodeReasonSurfaces(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{
		Status: accesscode.StatusUnavailable,
		Reason: accesscode.ReasonUnavailable,
	}}
	svc := newTestService(store, validator, &fakePromoter{}, time.Now())

	person := identity.Person{ID: "p2", Role: identity.RoleCommunityService}
	_, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	var codeErr *accesscode.CodeError
	require.ErrorAs(t, err, &codeErr)
	require.Equal(t, accesscode.ReasonUnavailable, codeErr.Reason)
}

func TestCheckInFlaggedVolunteerIsPromotedBeforeWrite(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	promoter := &fakePromoter{}
	svc := newTestService(store, validator, promoter, time.Now())

	sess, err := svc.CheckIn(context.Background(), volunteer(), "Kitchen", "1234", true)
	require.NoError(t, err)

	require.Equal(t, []string{"p1"}, promoter.promoted)
	require.Equal(t, identity.RoleCommunityService, sess.PersonRole)
	require.True(t, sess.IsSupervised)
	require.Len(t, store.active, 1)
}

func TestCheckInRejectsSecondActiveSession(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	svc := newTestService(store, validator, &fakePromoter{}, time.Now())

	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	_, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.ErrorIs(t, err, ErrActiveSessionExists)
	require.Len(t, store.active, 1)
}

func TestCheckOutComputesHours(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	checkIn := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.Local)
	svc := newTestService(store, validator, &fakePromoter{}, checkIn)

	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	sess, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)

	checkOut := time.Date(2024, time.June, 1, 12, 30, 0, 0, time.Local)
	svc.now = func() time.Time { return checkOut }

	done, err := svc.CheckOut(context.Background(), sess.ID, 4)
	require.NoError(t, err)
	require.Equal(t, "2.50", done.HoursWorked)
	require.Equal(t, 4, done.Rating)
	require.Equal(t, checkOut, *done.CheckOutAt)

	// Present in Completed, absent from Active.
	require.Contains(t, store.completed, sess.ID)
	require.NotContains(t, store.active, sess.ID)
}

func TestCheckOutZeroRatingMeansNoRating(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	svc := newTestService(store, validator, &fakePromoter{}, time.Now())

	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	sess, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)

	done, err := svc.CheckOut(context.Background(), sess.ID, 0)
	require.NoError(t, err)
	require.Zero(t, done.Rating)
}

func TestCheckOutRejectsInvalidRating(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeValidator{}, &fakePromoter{}, time.Now())
	_, err := svc.CheckOut(context.Background(), "sess-1", 6)
	require.ErrorIs(t, err, ErrInvalidRating)
	_, err = svc.CheckOut(context.Background(), "sess-1", -1)
	require.ErrorIs(t, err, ErrInvalidRating)
}

func TestCheckOutNonActiveSession(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	svc := newTestService(store, validator, &fakePromoter{}, time.Now())

	_, err := svc.CheckOut(context.Background(), "unknown", 0)
	require.ErrorIs(t, err, ErrNotActive)

	// A completed session cannot be checked out again.
	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	sess, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)
	_, err = svc.CheckOut(context.Background(), sess.ID, 0)
	require.NoError(t, err)
	_, err = svc.CheckOut(context.Background(), sess.ID, 0)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestCheckOutSurfacesStorageFailure(t *testing.T) {
	store := newFakeStore()
	validator := &fakeValidator{result: accesscode.Result{Status: accesscode.StatusValid}}
	svc := newTestService(store, validator, &fakePromoter{}, time.Now())

	person := identity.Person{ID: "p2", Role: identity.RoleEmployment}
	sess, err := svc.CheckIn(context.Background(), person, "Warehouse", "1234", false)
	require.NoError(t, err)

	store.completeErr = errors.New("primary down")
	_, err = svc.CheckOut(context.Background(), sess.ID, 0)
	require.Error(t, err)
	// The active record survives a failed move.
	require.Contains(t, store.active, sess.ID)
}
