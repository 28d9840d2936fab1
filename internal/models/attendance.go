package models

import (
	"time"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
)

// AttendanceRecord is one attendance outcome per (enrollment, date).
// The pair is unique at the storage layer; that constraint is the sole
// concurrency guard for simultaneous check-ins.
type AttendanceRecord struct {
	ID           string                  `db:"id" json:"id"`
	EnrollmentID string                  `db:"enrollment_id" json:"enrollment_id"`
	Date         time.Time               `db:"date" json:"date"`
	Status       evaluation.Status       `db:"status" json:"status"`
	MinutesLate  *int                    `db:"minutes_late" json:"minutes_late,omitempty"`
	LateSeverity evaluation.LateSeverity `db:"late_severity" json:"late_severity,omitempty"`
	CheckInAt    *time.Time              `db:"check_in_at" json:"check_in_at,omitempty"`
	Latitude     *float64                `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64                `db:"longitude" json:"longitude,omitempty"`
	GPSAccuracy  *float64                `db:"gps_accuracy" json:"gps_accuracy,omitempty"`
	ExcuseReason *string                 `db:"excuse_reason" json:"excuse_reason,omitempty"`
	HostAddress  *string                 `db:"host_address" json:"host_address,omitempty"`
	CreatedAt    time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time               `db:"updated_at" json:"updated_at"`
}

// Observation reduces the record to the aggregator's input.
func (r AttendanceRecord) Observation() evaluation.Observation {
	return evaluation.Observation{Status: r.Status, MinutesLate: r.MinutesLate}
}

// AttendanceDetail extends the record with student metadata for listings.
type AttendanceDetail struct {
	AttendanceRecord
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	SessionID   string `db:"session_id" json:"session_id"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	SessionID    string
	EnrollmentID string
	Status       *evaluation.Status
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// AttendanceHistoryRow captures history entries for one enrollment.
type AttendanceHistoryRow struct {
	Date         time.Time         `db:"date" json:"date"`
	Status       evaluation.Status `db:"status" json:"status"`
	MinutesLate  *int              `db:"minutes_late" json:"minutes_late,omitempty"`
	ExcuseReason *string           `db:"excuse_reason" json:"excuse_reason,omitempty"`
}
