package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
)

// Session is a recurring class definition owned by a teacher.
// StartTime and EndTime are local wall-clock values in HH:MM form;
// Weekdays is a comma-joined list of time.Weekday numbers (0=Sunday).
type Session struct {
	ID              string    `db:"id" json:"id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	Name            string    `db:"name" json:"name"`
	Weekdays        string    `db:"weekdays" json:"weekdays"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	GraceMinutes    int       `db:"grace_minutes" json:"grace_minutes"`
	ProximityRadius float64   `db:"proximity_radius_m" json:"proximity_radius_m"`
	HostLatitude    *float64  `db:"host_latitude" json:"host_latitude,omitempty"`
	HostLongitude   *float64  `db:"host_longitude" json:"host_longitude,omitempty"`
	HostAddress     *string   `db:"host_address" json:"host_address,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OccursOn reports whether the session meets on the given date's weekday.
func (s Session) OccursOn(date time.Time) bool {
	target := strconv.Itoa(int(date.Weekday()))
	for _, part := range strings.Split(s.Weekdays, ",") {
		if strings.TrimSpace(part) == target {
			return true
		}
	}
	return false
}

// WindowOn resolves the session's class window for a calendar date.
func (s Session) WindowOn(date time.Time) (evaluation.ClassWindow, error) {
	start, err := combine(date, s.StartTime)
	if err != nil {
		return evaluation.ClassWindow{}, fmt.Errorf("session start time: %w", err)
	}
	end, err := combine(date, s.EndTime)
	if err != nil {
		return evaluation.ClassWindow{}, fmt.Errorf("session end time: %w", err)
	}
	if !end.After(start) {
		return evaluation.ClassWindow{}, fmt.Errorf("session window ends before it starts")
	}
	return evaluation.ClassWindow{
		Start:        start,
		End:          end,
		GraceMinutes: evaluation.ClampGrace(s.GraceMinutes),
	}, nil
}

// ProximityEnabled reports whether GPS validation applies to check-ins.
func (s Session) ProximityEnabled() bool {
	return s.ProximityRadius > 0 && s.HostLatitude != nil && s.HostLongitude != nil
}

func combine(date time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location()), nil
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	OwnerID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
