package report

import (
	"context"
	"fmt"
	"strconv"

	"servetrack/internal/identity"
	"servetrack/internal/session"
)

// Row is the minimum field set any export or reporting collaborator must be
// able to render for a completed session. Formatting beyond this shape
// (CSV, spreadsheets) is the collaborator's problem.
type Row struct {
	Date               string `json:"date"`
	PersonDisplayName  string `json:"person_display_name"`
	LocationOrActivity string `json:"location_or_activity"`
	CheckInTime        string `json:"check_in_time"`
	CheckOutTime       string `json:"check_out_time"`
	HoursWorked        string `json:"hours_worked"`
	Rating             string `json:"rating"`
	Identifier         string `json:"identifier"`
}

// PersonLookup is the slice of the identity store the builder needs.
type PersonLookup interface {
	Get(ctx context.Context, id string) (identity.Person, error)
}

// Builder turns completed sessions into export rows.
type Builder struct {
	people PersonLookup
}

// NewBuilder creates a builder over a person lookup.
func NewBuilder(people PersonLookup) *Builder {
	return &Builder{people: people}
}

// Rows renders completed sessions newest first. Sessions whose person
// record cannot be loaded keep the session data with blank person fields
// rather than failing the whole report.
func (b *Builder) Rows(ctx context.Context, sessions []session.Session) ([]Row, error) {
	rows := make([]Row, 0, len(sessions))
	for _, s := range sessions {
		if !s.Completed() {
			return nil, fmt.Errorf("session %s is not completed", s.ID)
		}
		row := Row{
			Date:               s.CheckInAt.Format("2006-01-02"),
			LocationOrActivity: s.Location,
			CheckInTime:        s.CheckInAt.Format("15:04:05"),
			CheckOutTime:       s.CheckOutAt.Format("15:04:05"),
			HoursWorked:        s.HoursWorked,
			Rating:             "N/A",
		}
		if s.Rating > 0 {
			row.Rating = strconv.Itoa(s.Rating)
		}
		if p, err := b.people.Get(ctx, s.PersonID); err == nil {
			row.PersonDisplayName = p.DisplayName
			row.Identifier = p.Contact()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
