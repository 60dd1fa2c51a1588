package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestAsActiveConflictMapsUniqueViolation(t *testing.T) {
	// The loser of a first-check-in race gets a unique violation on the
	// person index; callers must see ErrActiveSessionExists, not a driver
	// error.
	raw := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_active_sessions_person",
		Message:        `duplicate key value violates unique constraint "idx_active_sessions_person"`,
	}
	require.ErrorIs(t, asActiveConflict(raw), ErrActiveSessionExists)

	// Wrapped errors are unwrapped before matching.
	wrapped := fmt.Errorf("exec insert: %w", raw)
	require.ErrorIs(t, asActiveConflict(wrapped), ErrActiveSessionExists)
}

func TestAsActiveConflictPassesThroughOtherErrors(t *testing.T) {
	other := &pgconn.PgError{Code: "23505", ConstraintName: "completed_sessions_pkey"}
	require.NotErrorIs(t, asActiveConflict(other), ErrActiveSessionExists)

	plain := errors.New("connection reset")
	require.Equal(t, plain, asActiveConflict(plain))
}
