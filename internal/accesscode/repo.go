package accesscode

import (
	"context"
	"database/sql"
	"errors"
)

// Repository persists the daily code and audit trail in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Current returns the current daily code, or nil when none has been issued.
func (r *Repository) Current(ctx context.Context) (*DailyCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, created_at, expires_at, created_by
		FROM daily_code WHERE singleton
	`)
	var c DailyCode
	if err := row.Scan(&c.Code, &c.CreatedAt, &c.ExpiresAt, &c.CreatedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Save overwrites the single daily code row.
func (r *Repository) Save(ctx context.Context, code DailyCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_code (singleton, code, created_at, expires_at, created_by)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO UPDATE SET
			code = EXCLUDED.code,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			created_by = EXCLUDED.created_by
	`, code.Code, code.CreatedAt, code.ExpiresAt, code.CreatedBy)
	return err
}

// AppendAudit writes an entry and evicts everything beyond the newest 100.
func (r *Repository) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO code_audit_log (code, action, admin_id, at)
		VALUES ($1, $2, $3, $4)
	`, entry.Code, entry.Action, entry.AdminID, entry.Timestamp); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM code_audit_log
		WHERE id NOT IN (SELECT id FROM code_audit_log ORDER BY id DESC LIMIT $1)
	`, auditCap)
	return err
}

// RecentAudit returns entries newest first.
func (r *Repository) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > auditCap {
		limit = auditCap
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, action, admin_id, at
		FROM code_audit_log ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.Code, &e.Action, &e.AdminID, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
