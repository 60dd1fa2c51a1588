package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound means the identifier matched no person record.
var ErrNotFound = errors.New("no person matches identifier")

// AmbiguousError carries every candidate when an identifier resolves to
// more than one role record. The caller must present all of them; the
// resolver never picks one.
type AmbiguousError struct {
	Candidates []Person
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("identifier matches %d person records", len(e.Candidates))
}

// PersonStore persists and looks up person records.
type PersonStore interface {
	Create(ctx context.Context, p Person) (Person, error)
	Get(ctx context.Context, id string) (Person, error)
	FindByEmail(ctx context.Context, email string) ([]Person, error)
	FindByPhone(ctx context.Context, digits string) ([]Person, error)
	SetRole(ctx context.Context, id string, role Role) error
}

// Resolver maps walk-up identifiers to person records across role types.
type Resolver struct {
	store  PersonStore
	logger *zap.Logger
}

// NewResolver creates a resolver over a person store.
func NewResolver(store PersonStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve finds every person record matching the identifier. Exactly one
// match returns that person; several matches return *AmbiguousError; none
// returns ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Person, error) {
	normalized, isEmail := NormalizeIdentifier(identifier)
	if normalized == "" {
		return Person{}, ErrNotFound
	}

	var (
		matches []Person
		err     error
	)
	if isEmail {
		matches, err = r.store.FindByEmail(ctx, normalized)
	} else {
		matches, err = r.store.FindByPhone(ctx, normalized)
	}
	if err != nil {
		return Person{}, fmt.Errorf("lookup person: %w", err)
	}

	switch len(matches) {
	case 0:
		return Person{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return Person{}, &AmbiguousError{Candidates: matches}
	}
}

// Get loads a single person record by id (used for the explicit pick after
// an ambiguous resolution).
func (r *Resolver) Get(ctx context.Context, id string) (Person, error) {
	return r.store.Get(ctx, id)
}

// Register creates a new person record for a role.
func (r *Resolver) Register(ctx context.Context, role Role, displayName, email, phone string) (Person, error) {
	if !role.Valid() {
		return Person{}, fmt.Errorf("unknown role %q", role)
	}
	if email == "" && phone == "" {
		return Person{}, errors.New("email or phone required")
	}
	if email != "" {
		email = strings.ToLower(strings.TrimSpace(email))
	}
	if phone != "" {
		phone, _ = NormalizeIdentifier(phone)
	}
	p, err := r.store.Create(ctx, Person{
		Role:        role,
		DisplayName: displayName,
		Email:       email,
		Phone:       phone,
	})
	if err != nil {
		return Person{}, fmt.Errorf("create person: %w", err)
	}
	r.logger.Info("person registered", zap.String("person_id", p.ID), zap.String("role", string(p.Role)))
	return p, nil
}

// PromoteToCommunityService upgrades a plain volunteer to the
// community-service role. The change is permanent and alters the person's
// default check-in behavior from then on. Promoting a non-volunteer is a
// no-op.
func (r *Resolver) PromoteToCommunityService(ctx context.Context, personID string) (Person, error) {
	p, err := r.store.Get(ctx, personID)
	if err != nil {
		return Person{}, fmt.Errorf("load person: %w", err)
	}
	if p.Role != RoleVolunteer {
		return p, nil
	}
	if err := r.store.SetRole(ctx, p.ID, RoleCommunityService); err != nil {
		return Person{}, fmt.Errorf("set role: %w", err)
	}
	r.logger.Info("person role upgraded",
		zap.String("person_id", p.ID),
		zap.String("from", string(RoleVolunteer)),
		zap.String("to", string(RoleCommunityService)))
	p.Role = RoleCommunityService
	return p, nil
}
