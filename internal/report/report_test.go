package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"servetrack/internal/identity"
	"servetrack/internal/session"
)

type fakeLookup struct {
	people map[string]identity.Person
}

func (l *fakeLookup) Get(ctx context.Context, id string) (identity.Person, error) {
	p, ok := l.people[id]
	if !ok {
		return identity.Person{}, identity.ErrNotFound
	}
	return p, nil
}

func TestRows(t *testing.T) {
	lookup := &fakeLookup{people: map[string]identity.Person{
		"p1": {ID: "p1", DisplayName: "Pat", Email: "pat@example.com"},
		"p2": {ID: "p2", DisplayName: "Sam", Phone: "5551234567"},
	}}
	b := NewBuilder(lookup)

	checkIn := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.Local)
	checkOut := checkIn.Add(2*time.Hour + 30*time.Minute)
	sessions := []session.Session{
		{ID: "s1", PersonID: "p1", Location: "Kitchen", CheckInAt: checkIn, CheckOutAt: &checkOut, HoursWorked: "2.50", Rating: 4},
		{ID: "s2", PersonID: "p2", Location: "Stage", CheckInAt: checkIn, CheckOutAt: &checkOut, HoursWorked: "2.50"},
	}

	rows, err := b.Rows(context.Background(), sessions)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "2024-06-01", rows[0].Date)
	require.Equal(t, "Pat", rows[0].PersonDisplayName)
	require.Equal(t, "Kitchen", rows[0].LocationOrActivity)
	require.Equal(t, "10:00:00", rows[0].CheckInTime)
	require.Equal(t, "12:30:00", rows[0].CheckOutTime)
	require.Equal(t, "2.50", rows[0].HoursWorked)
	require.Equal(t, "4", rows[0].Rating)
	require.Equal(t, "pat@example.com", rows[0].Identifier)

	// Rating 0 renders as N/A; phone-registered people report their phone.
	require.Equal(t, "N/A", rows[1].Rating)
	require.Equal(t, "5551234567", rows[1].Identifier)
}

func TestRowsRejectsActiveSession(t *testing.T) {
	b := NewBuilder(&fakeLookup{})
	_, err := b.Rows(context.Background(), []session.Session{{ID: "s1"}})
	require.Error(t, err)
}

func TestRowsToleratesMissingPerson(t *testing.T) {
	b := NewBuilder(&fakeLookup{people: map[string]identity.Person{}})
	checkOut := time.Now()
	rows, err := b.Rows(context.Background(), []session.Session{
		{ID: "s1", PersonID: "ghost", CheckInAt: checkOut.Add(-time.Hour), CheckOutAt: &checkOut, HoursWorked: "1.00"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Empty(t, rows[0].PersonDisplayName)
	require.Equal(t, "1.00", rows[0].HoursWorked)
}
