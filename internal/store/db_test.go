package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDBRejectsMalformedURL(t *testing.T) {
	// The DSN is parsed at open time, before any connection attempt; a nil
	// handle comes back and callers must not wire against it.
	db, err := NewDB("://not-a-database-url")
	require.Error(t, err)
	require.Nil(t, db)
}

func TestCloseNilIsSafe(t *testing.T) {
	var db *DB
	require.NoError(t, db.Close())
}
