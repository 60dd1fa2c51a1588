package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists person records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const personColumns = `id, role, display_name, email, phone, registered_at`

// Create inserts a person record.
func (r *Repository) Create(ctx context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO persons (id, role, display_name, email, phone, registered_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`, p.ID, p.Role, p.DisplayName, p.Email, p.Phone, p.RegisteredAt)
	if err != nil {
		return Person{}, err
	}
	return p, nil
}

// Get returns a person by id.
func (r *Repository) Get(ctx context.Context, id string) (Person, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons WHERE id = $1
	`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Person{}, ErrNotFound
	}
	return p, err
}

// FindByEmail returns every role record registered under the email.
func (r *Repository) FindByEmail(ctx context.Context, email string) ([]Person, error) {
	return r.find(ctx, `SELECT `+personColumns+` FROM persons WHERE lower(email) = $1 ORDER BY registered_at`, email)
}

// FindByPhone returns every role record registered under the phone digits.
func (r *Repository) FindByPhone(ctx context.Context, digits string) ([]Person, error) {
	return r.find(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE regexp_replace(coalesce(phone, ''), '\D', '', 'g') = $1 AND phone IS NOT NULL
		ORDER BY registered_at
	`, digits)
}

// SetRole updates the stored role.
func (r *Repository) SetRole(ctx context.Context, id string, role Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE persons SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) find(ctx context.Context, query string, arg any) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (Person, error) {
	var (
		p     Person
		email sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Role, &p.DisplayName, &email, &phone, &p.RegisteredAt); err != nil {
		return Person{}, err
	}
	p.Email = email.String
	p.Phone = phone.String
	return p, nil
}
