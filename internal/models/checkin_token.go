package models

import "time"

// TokenKind distinguishes the two check-in window variants.
type TokenKind string

const (
	TokenKindQR    TokenKind = "QR"
	TokenKindPhoto TokenKind = "PHOTO"
)

// Valid returns true when the kind is a supported value.
func (k TokenKind) Valid() bool {
	return k == TokenKindQR || k == TokenKindPhoto
}

// TokenState is the derived lifecycle state of a check-in token.
type TokenState string

const (
	TokenStateActive      TokenState = "ACTIVE"
	TokenStateConsumed    TokenState = "CONSUMED"
	TokenStateExpired     TokenState = "EXPIRED"
	TokenStateInvalidated TokenState = "INVALIDATED"
)

// CheckInToken is a single-use-window credential scoped to one session and
// attendance date. Tokens are never reused across dates.
type CheckInToken struct {
	ID             string     `db:"id" json:"id"`
	SessionID      string     `db:"session_id" json:"session_id"`
	AttendanceDate time.Time  `db:"attendance_date" json:"attendance_date"`
	Kind           TokenKind  `db:"kind" json:"kind"`
	Token          string     `db:"token" json:"token"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	IsValid        bool       `db:"is_valid" json:"is_valid"`
	UsedCount      int        `db:"used_count" json:"used_count"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ClosedAt       *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}

// State derives the token's lifecycle state at the given instant.
// Expiry wins over the validity flag: a token past expires_at is EXPIRED
// even when is_valid is still set. Validation is read-only; only the
// subsequent attendance write mutates used_count.
func (t CheckInToken) State(now time.Time) TokenState {
	if now.After(t.ExpiresAt) {
		return TokenStateExpired
	}
	if !t.IsValid {
		return TokenStateInvalidated
	}
	if t.UsedCount > 0 {
		return TokenStateConsumed
	}
	return TokenStateActive
}

// Usable reports whether a check-in may proceed with this token. Consumed
// tokens stay usable for further check-ins by other students; the record
// uniqueness on (enrollment, date) rejects a second attendance-creating use
// by the same student.
func (t CheckInToken) Usable(now time.Time) bool {
	state := t.State(now)
	return state == TokenStateActive || state == TokenStateConsumed
}

// Matches verifies the token belongs to the session and date being checked
// into.
func (t CheckInToken) Matches(sessionID string, date time.Time) bool {
	if t.SessionID != sessionID {
		return false
	}
	y1, m1, d1 := t.AttendanceDate.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
