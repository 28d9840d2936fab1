package evaluation

import "time"

// Status represents the attendance outcome for an enrollment on a date.
type Status string

const (
	StatusOnTime      Status = "ON_TIME"
	StatusLate        Status = "LATE"
	StatusAbsent      Status = "ABSENT"
	StatusExcused     Status = "EXCUSED"
	StatusNotEnrolled Status = "NOT_ENROLLED"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusOnTime, StatusLate, StatusAbsent, StatusExcused, StatusNotEnrolled:
		return true
	default:
		return false
	}
}

// Counted reports whether the status counts toward attendance.
func (s Status) Counted() bool {
	return s == StatusOnTime || s == StatusLate || s == StatusExcused
}

// LateSeverity distinguishes a check-in shortly past grace from one after
// the session already ended. Both classify as LATE; severity carries the
// distinction instead of a display-string hack.
type LateSeverity string

const (
	SeverityNone     LateSeverity = ""
	SeverityModerate LateSeverity = "MODERATE"
	SeverityMissed   LateSeverity = "MISSED"
)

const (
	minGraceMinutes = 0
	maxGraceMinutes = 60
)

// ClassWindow describes a single session occurrence on a calendar date.
type ClassWindow struct {
	Start        time.Time
	End          time.Time
	GraceMinutes int
}

// Result is the classifier output for one check-in.
type Result struct {
	Status      Status       `json:"status"`
	MinutesLate int          `json:"minutes_late,omitempty"`
	Severity    LateSeverity `json:"severity,omitempty"`
}

// ClampGrace bounds grace minutes to the supported range. Sessions persist
// a clamped value already; the classifier does not assume that and clamps
// again on every call.
func ClampGrace(minutes int) int {
	if minutes < minGraceMinutes {
		return minGraceMinutes
	}
	if minutes > maxGraceMinutes {
		return maxGraceMinutes
	}
	return minutes
}

// Classify determines the status for a recorded check-in against a class
// window. A missing check-in is decided at finalization by the caller
// (ABSENT, or EXCUSED when a reason was supplied) and never reaches here.
// Proximity rejection likewise happens before classification.
func Classify(window ClassWindow, checkIn time.Time) Result {
	grace := ClampGrace(window.GraceMinutes)
	graceEnd := window.Start.Add(time.Duration(grace) * time.Minute)

	if !checkIn.After(graceEnd) {
		return Result{Status: StatusOnTime}
	}

	minutesLate := int(checkIn.Sub(graceEnd) / time.Minute)
	if checkIn.After(window.End) {
		return Result{Status: StatusLate, MinutesLate: minutesLate, Severity: SeverityMissed}
	}
	return Result{Status: StatusLate, MinutesLate: minutesLate, Severity: SeverityModerate}
}
