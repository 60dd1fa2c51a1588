package session

import (
	"errors"
	"fmt"
	"math"
	"time"

	"servetrack/internal/identity"
)

// Session is one attendance record. It lives in exactly one of two disjoint
// sets: Active (no CheckOutAt) or Completed (CheckOutAt set, HoursWorked
// computed).
type Session struct {
	ID              string        `json:"id"`
	PersonID        string        `json:"person_id"`
	PersonRole      identity.Role `json:"person_role"`
	Location        string        `json:"location"`
	CheckInAt       time.Time     `json:"check_in_at"`
	CheckOutAt      *time.Time    `json:"check_out_at,omitempty"`
	HoursWorked     string        `json:"hours_worked,omitempty"`
	Rating          int           `json:"rating,omitempty"`
	IsSupervised    bool          `json:"is_supervised"`
	IsAutoCompleted bool          `json:"is_auto_completed"`
}

// Completed reports whether the session has been checked out.
func (s Session) Completed() bool {
	return s.CheckOutAt != nil
}

// autoCompleteDuration is the fixed credit for unsupervised volunteers.
const autoCompleteDuration = 4 * time.Hour

// FormatHours renders an elapsed duration as fixed two-decimal hours,
// e.g. 2h30m -> "2.50".
func FormatHours(d time.Duration) string {
	hours := math.Round(d.Hours()*100) / 100
	return fmt.Sprintf("%.2f", hours)
}

// Session state errors.
var (
	// ErrNotActive: the session is not in the Active set (unknown id or
	// already completed).
	ErrNotActive = errors.New("session is not active")
	// ErrActiveSessionExists: the person already holds an active session;
	// concurrent check-ins are rejected outright.
	ErrActiveSessionExists = errors.New("person already has an active session")
	// ErrInvalidRating: rating outside 0-5.
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
)
