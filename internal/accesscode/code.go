package accesscode

import (
	"fmt"
	"strings"
	"time"
)

// DailyCode is the single current access code gating supervised check-ins.
// It is overwritten, not versioned; history lives in the audit log.
type DailyCode struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedBy string    `json:"created_by"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (c DailyCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AuditEntry records one change to the daily code. Entries are immutable;
// the log keeps the most recent 100.
type AuditEntry struct {
	Code      string    `json:"code"`
	Action    string    `json:"action"`
	AdminID   string    `json:"admin_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit actions.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionGenerated = "generated"
)

// Normalize forces a code to exactly four digits: non-digit characters are
// dropped, longer values keep their last four digits, shorter values are
// left-padded with zeros. "7" and "0007" normalize to the same value.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	return strings.Repeat("0", 4-len(digits)) + digits
}

// expiryAfter returns local midnight at the end of the calendar day
// following t: a code issued any time today stays valid through all of
// tomorrow.
func expiryAfter(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+2, 0, 0, 0, 0, t.Location())
}

// Validation outcomes. Unavailable is deliberately distinct from Invalid:
// it means no current code is usable and no fallback code is configured,
// which callers surface as "no backup code configured" rather than
// "wrong code".
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusUnavailable
)

// Reasons attached to non-Valid results.
const (
	ReasonMismatch    = "mismatch"
	ReasonExpired     = "expired"
	ReasonUnavailable = "unavailable"
)

// Result is the outcome of validating a submitted code.
type Result struct {
	Status Status
	Reason string
}

// Err converts a non-Valid result into a *CodeError, nil otherwise.
func (r Result) Err() error {
	if r.Status == StatusValid {
		return nil
	}
	return &CodeError{Reason: r.Reason}
}

// CodeError reports a rejected access code with the specific reason.
type CodeError struct {
	Reason string
}

func (e *CodeError) Error() string {
	switch e.Reason {
	case ReasonUnavailable:
		return "access code unavailable: no backup code configured"
	case ReasonExpired:
		return "access code expired"
	default:
		return "access code mismatch"
	}
}

// String renders a status for logs and responses.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
