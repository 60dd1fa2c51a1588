package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the durable home of attendance sessions.
type Store interface {
	// CreateActive inserts an active session, failing with
	// ErrActiveSessionExists when the person already holds one. The guard
	// and the insert run in one transaction.
	CreateActive(ctx context.Context, s Session) error
	// InsertCompleted writes a completed session directly (the
	// auto-complete path never creates an active record).
	InsertCompleted(ctx context.Context, s Session) error
	// CompleteActive moves a session from Active to Completed in one
	// transaction: write the completed record, remove the active one.
	CompleteActive(ctx context.Context, completed Session) error
	ActiveByID(ctx context.Context, id string) (Session, error)
	ListActive(ctx context.Context) ([]Session, error)
	ListCompleted(ctx context.Context, limit, offset int) ([]Session, error)
}

// Repository persists sessions in Postgres across two tables so the Active
// and Completed sets stay disjoint by construction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateActive inserts into active_sessions. The row lock on the person's
// existing active row rejects a second check-in while one is visible; two
// callers racing to create the person's *first* active session both pass
// the empty select (FOR UPDATE locks nothing when no row matches), so the
// loser's insert hits the unique index on person_id and is mapped to
// ErrActiveSessionExists rather than surfacing a driver error.
func (r *Repository) CreateActive(ctx context.Context, s Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM active_sessions WHERE person_id = $1 FOR UPDATE
	`, s.PersonID).Scan(&existing)
	if err == nil {
		return ErrActiveSessionExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO active_sessions (id, person_id, person_role, location, check_in_at, is_supervised)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.PersonID, s.PersonRole, s.Location, s.CheckInAt, s.IsSupervised); err != nil {
		return asActiveConflict(err)
	}
	return tx.Commit()
}

// asActiveConflict translates a unique violation on the one-active-session
// index into ErrActiveSessionExists.
func asActiveConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_active_sessions_person" {
		return ErrActiveSessionExists
	}
	return err
}

// InsertCompleted writes a completed session record.
func (r *Repository) InsertCompleted(ctx context.Context, s Session) error {
	return insertCompleted(ctx, r.db, s)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCompleted(ctx context.Context, db execer, s Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO completed_sessions
			(id, person_id, person_role, location, check_in_at, check_out_at,
			 hours_worked, rating, is_supervised, is_auto_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), $9, $10)
	`, s.ID, s.PersonID, s.PersonRole, s.Location, s.CheckInAt, s.CheckOutAt,
		s.HoursWorked, s.Rating, s.IsSupervised, s.IsAutoCompleted)
	return err
}

// CompleteActive performs the Active -> Completed move transactionally:
// the completed record is written before the active one is removed, and a
// delete that finds nothing is success, so a retry after a dropped
// connection cannot lose or duplicate the session.
func (r *Repository) CompleteActive(ctx context.Context, completed Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertCompleted(ctx, tx, completed); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM active_sessions WHERE id = $1
	`, completed.ID); err != nil {
		return err
	}
	return tx.Commit()
}

const activeColumns = `id, person_id, person_role, location, check_in_at, is_supervised`

// ActiveByID returns an active session, or ErrNotActive.
func (r *Repository) ActiveByID(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+activeColumns+` FROM active_sessions WHERE id = $1
	`, id)
	s, err := scanActive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotActive
	}
	return s, err
}

// ListActive returns all active sessions, oldest check-in first.
func (r *Repository) ListActive(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+activeColumns+` FROM active_sessions ORDER BY check_in_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanActive(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListCompleted returns completed sessions, newest check-out first.
func (r *Repository) ListCompleted(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_id, person_role, location, check_in_at, check_out_at,
		       hours_worked, rating, is_supervised, is_auto_completed
		FROM completed_sessions
		ORDER BY check_out_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s      Session
			rating sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.PersonID, &s.PersonRole, &s.Location,
			&s.CheckInAt, &s.CheckOutAt, &s.HoursWorked, &rating,
			&s.IsSupervised, &s.IsAutoCompleted); err != nil {
			return nil, err
		}
		s.Rating = int(rating.Int64)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActive(row rowScanner) (Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.PersonID, &s.PersonRole, &s.Location, &s.CheckInAt, &s.IsSupervised); err != nil {
		return Session{}, err
	}
	return s, nil
}
