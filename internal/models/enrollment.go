package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment. Enrollments
// are never hard-deleted; they transition to COMPLETED or DROPPED.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}

// Enrollment captures a student's registration to a session over a date range.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StartDate time.Time        `db:"start_date" json:"start_date"`
	EndDate   *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CanHost   bool             `db:"can_host" json:"can_host"`
	HostDate  *time.Time       `db:"host_date" json:"host_date,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// CanBeHost reports whether the enrollment may be flagged as a host.
// Only active enrollments host sessions.
func (e Enrollment) CanBeHost() bool {
	return e.Status == EnrollmentStatusActive
}

// EnrollmentDetail enriches Enrollment with student and session info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	SessionName string `db:"session_name" json:"session_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SessionID string
	Status    EnrollmentStatus
	CanHost   *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
