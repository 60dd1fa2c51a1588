package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"servetrack/internal/accesscode"
	"servetrack/internal/identity"
)

// CodeValidator is the slice of the code authority the state machine needs.
type CodeValidator interface {
	Validate(ctx context.Context, submitted string) (accesscode.Result, error)
}

// RolePromoter performs the explicit volunteer -> community_service upgrade.
type RolePromoter interface {
	PromoteToCommunityService(ctx context.Context, personID string) (identity.Person, error)
}

// Service is the attendance state machine: it owns the check-in/check-out
// policy per person-role and drives every transition through the store.
type Service struct {
	store    Store
	codes    CodeValidator
	promoter RolePromoter
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires the state machine.
func NewService(store Store, codes CodeValidator, promoter RolePromoter, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		codes:    codes,
		promoter: promoter,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CheckIn starts (or, for unsupervised volunteers, immediately completes) a
// session for the person.
//
// Supervised roles (community_service, employment) and community-service
// flagged volunteers must present a valid access code; a rejected code
// aborts before any write. Flagging a plain volunteer permanently upgrades
// their role before the session is written. An unsupervised, unflagged
// volunteer never gets an active record: the session is synthesized
// directly in the completed state with a fixed four-hour credit.
func (s *Service) CheckIn(ctx context.Context, person identity.Person, location, suppliedCode string, csFlagged bool) (Session, error) {
	supervised := person.Role.Supervised() || csFlagged

	if supervised {
		res, err := s.codes.Validate(ctx, suppliedCode)
		if err != nil {
			checkIns.WithLabelValues("error").Inc()
			return Session{}, fmt.Errorf("validate code: %w", err)
		}
		if err := res.Err(); err != nil {
			checkIns.WithLabelValues("rejected_code").Inc()
			return Session{}, err
		}
	}

	if csFlagged && person.Role == identity.RoleVolunteer {
		promoted, err := s.promoter.PromoteToCommunityService(ctx, person.ID)
		if err != nil {
			checkIns.WithLabelValues("error").Inc()
			return Session{}, fmt.Errorf("promote person: %w", err)
		}
		person = promoted
	}

	now := s.now()
	sess := Session{
		ID:           s.newID(),
		PersonID:     person.ID,
		PersonRole:   person.Role,
		Location:     location,
		CheckInAt:    now,
		IsSupervised: supervised,
	}

	if !supervised {
		out := now.Add(autoCompleteDuration)
		sess.CheckOutAt = &out
		sess.HoursWorked = FormatHours(autoCompleteDuration)
		sess.Rating = 5
		sess.IsAutoCompleted = true
		if err := s.store.InsertCompleted(ctx, sess); err != nil {
			checkIns.WithLabelValues("error").Inc()
			return Session{}, fmt.Errorf("insert completed session: %w", err)
		}
		checkIns.WithLabelValues("auto_completed").Inc()
		s.logger.Info("session auto-completed",
			zap.String("session_id", sess.ID),
			zap.String("person_id", person.ID),
			zap.String("location", location))
		return sess, nil
	}

	if err := s.store.CreateActive(ctx, sess); err != nil {
		if errors.Is(err, ErrActiveSessionExists) {
			checkIns.WithLabelValues("rejected_active_exists").Inc()
			return Session{}, err
		}
		checkIns.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("create active session: %w", err)
	}
	checkIns.WithLabelValues("active").Inc()
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("person_id", person.ID),
		zap.String("role", string(person.Role)),
		zap.String("location", location))
	return sess, nil
}

// CheckOut completes an active session. Rating 0 means "no rating" and the
// field is omitted; 1-5 are stored. Any other value is rejected before the
// session is touched.
func (s *Service) CheckOut(ctx context.Context, sessionID string, rating int) (Session, error) {
	if rating < 0 || rating > 5 {
		return Session{}, ErrInvalidRating
	}

	sess, err := s.store.ActiveByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotActive) {
			checkOuts.WithLabelValues("not_active").Inc()
			return Session{}, err
		}
		checkOuts.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("load active session: %w", err)
	}

	now := s.now()
	sess.CheckOutAt = &now
	sess.HoursWorked = FormatHours(now.Sub(sess.CheckInAt))
	sess.Rating = rating

	if err := s.store.CompleteActive(ctx, sess); err != nil {
		checkOuts.WithLabelValues("error").Inc()
		return Session{}, fmt.Errorf("complete session: %w", err)
	}
	checkOuts.WithLabelValues("completed").Inc()
	s.logger.Info("session completed",
		zap.String("session_id", sess.ID),
		zap.String("person_id", sess.PersonID),
		zap.String("hours_worked", sess.HoursWorked))
	return sess, nil
}

// ListActive returns current active sessions through the fallback chain.
func (s *Service) ListActive(ctx context.Context) ([]Session, error) {
	return s.store.ListActive(ctx)
}

// ListCompleted returns completed sessions through the fallback chain.
func (s *Service) ListCompleted(ctx context.Context, limit, offset int) ([]Session, error) {
	return s.store.ListCompleted(ctx, limit, offset)
}
