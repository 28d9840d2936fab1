package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindByEnrollmentDate(ctx context.Context, enrollmentID string, date time.Time) (*models.AttendanceRecord, error)
	History(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
	Delete(ctx context.Context, id string) error
}

type attendanceEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type attendanceAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type attendanceScoreInvalidator interface {
	InvalidateEnrollment(ctx context.Context, enrollmentID string)
}

// MarkAttendanceRequest is a staff-entered attendance outcome. It replaces
// any prior record for the same (enrollment, date).
type MarkAttendanceRequest struct {
	EnrollmentID string            `json:"enrollment_id" validate:"required,uuid"`
	Date         time.Time         `json:"date" validate:"required"`
	Status       evaluation.Status `json:"status" validate:"required"`
	MinutesLate  *int              `json:"minutes_late,omitempty" validate:"omitempty,gte=0"`
	ExcuseReason *string           `json:"excuse_reason,omitempty"`

	ActorID   string `json:"-"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AttendanceService handles staff attendance management.
type AttendanceService struct {
	attendance  attendanceRepository
	enrollments attendanceEnrollmentRepository
	sessions    attendanceSessionRepository
	audits      attendanceAuditWriter
	scores      attendanceScoreInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(
	attendance attendanceRepository,
	enrollments attendanceEnrollmentRepository,
	sessions attendanceSessionRepository,
	audits attendanceAuditWriter,
	scores attendanceScoreInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceService{
		attendance:  attendance,
		enrollments: enrollments,
		sessions:    sessions,
		audits:      audits,
		scores:      scores,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// Mark records or replaces an attendance outcome. Staff marking is an upsert;
// re-marking the same date is a correction, not a conflict. An EXCUSED status
// always carries a non-empty reason; LATE carries explicit minutes.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() || req.Status == evaluation.StatusNotEnrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
	}
	if req.Status == evaluation.StatusExcused {
		if req.ExcuseReason == nil || strings.TrimSpace(*req.ExcuseReason) == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidExcuseReason, "")
		}
	}
	if req.Status != evaluation.StatusLate && req.MinutesLate != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minutes_late only applies to LATE")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	session, err := s.sessions.FindByID(ctx, enrollment.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.OccursOn(req.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session does not meet on that date")
	}

	prev, err := s.attendance.FindByEnrollmentDate(ctx, req.EnrollmentID, req.Date)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing record")
	}

	record := &models.AttendanceRecord{
		ID:           uuid.NewString(),
		EnrollmentID: req.EnrollmentID,
		Date:         req.Date,
		Status:       req.Status,
		ExcuseReason: req.ExcuseReason,
	}
	if req.Status == evaluation.StatusLate {
		record.MinutesLate = req.MinutesLate
		record.LateSeverity = evaluation.SeverityModerate
		if req.MinutesLate != nil {
			// Lateness is measured from the end of grace, so the cutover to
			// a missed class sits at (duration - grace) minutes.
			if window, werr := session.WindowOn(req.Date); werr == nil {
				cutover := int(window.End.Sub(window.Start).Minutes()) - window.GraceMinutes
				if *req.MinutesLate > cutover {
					record.LateSeverity = evaluation.SeverityMissed
				}
			}
		}
	}

	saved, err := s.attendance.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}

	if prev != nil {
		s.audit(ctx, req.ActorID, models.AuditActionAttendanceRemark, saved.ID, prev, saved, req.IP, req.UserAgent)
	}
	if s.scores != nil {
		s.scores.InvalidateEnrollment(ctx, req.EnrollmentID)
	}

	return saved, nil
}

// List returns attendance records matching the filter with a total count.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	records, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, total, nil
}

// History returns the per-date attendance trail for one enrollment.
func (s *AttendanceService) History(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	rows, err := s.attendance.History(ctx, enrollmentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return rows, nil
}

// Delete removes one attendance record and writes an audit entry carrying the
// removed values. Deletion is admin-only and always audited.
func (s *AttendanceService) Delete(ctx context.Context, enrollmentID string, date time.Time, actorID, ip, userAgent string) error {
	record, err := s.attendance.FindByEnrollmentDate(ctx, enrollmentID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}

	if err := s.attendance.Delete(ctx, record.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}

	s.audit(ctx, actorID, models.AuditActionAttendanceDelete, record.ID, record, nil, ip, userAgent)
	if s.scores != nil {
		s.scores.InvalidateEnrollment(ctx, enrollmentID)
	}
	return nil
}

func (s *AttendanceService) audit(ctx context.Context, actorID, action, resourceID string, oldRecord, newRecord *models.AttendanceRecord, ip, userAgent string) {
	if s.audits == nil {
		return
	}
	actor := actorID
	rid := resourceID
	entry := &models.AuditLog{
		UserID:     &actor,
		Action:     action,
		Resource:   "attendance_record",
		ResourceID: &rid,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if oldRecord != nil {
		if raw, err := json.Marshal(oldRecord); err == nil {
			entry.OldValues = raw
		}
	}
	if newRecord != nil {
		if raw, err := json.Marshal(newRecord); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
