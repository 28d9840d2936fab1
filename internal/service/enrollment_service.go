package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	SetHost(ctx context.Context, id string, canHost bool, hostDate *time.Time) error
	HostOn(ctx context.Context, sessionID string, date time.Time) (*models.Enrollment, error)
}

type enrollmentSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

// EnrollRequest registers a student to a session.
type EnrollRequest struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	SessionID string    `json:"session_id" validate:"required,uuid"`
	StartDate time.Time `json:"start_date" validate:"required"`
}

// Allowed enrollment status transitions. Enrollments never hard-delete;
// dropping or completing is the terminal path.
var enrollmentTransitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusPending: {models.EnrollmentStatusActive, models.EnrollmentStatusDropped},
	models.EnrollmentStatusActive:  {models.EnrollmentStatusCompleted, models.EnrollmentStatusDropped},
}

// EnrollmentService manages enrollment lifecycle and host assignment.
type EnrollmentService struct {
	enrollments enrollmentRepository
	sessions    enrollmentSessionRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(enrollments enrollmentRepository, sessions enrollmentSessionRepository, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{enrollments: enrollments, sessions: sessions, validator: validate, logger: logger}
}

// Enroll creates a pending enrollment for the student.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	enrollment := &models.Enrollment{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		SessionID: req.SessionID,
		StartDate: req.StartDate,
		Status:    models.EnrollmentStatusPending,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Get returns one enrollment by id.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments matching the filter with a total count.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// UpdateStatus moves the enrollment along its lifecycle. Leaving ACTIVE
// clears any host flag at the storage layer.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported enrollment status")
	}
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(enrollment.Status, status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "status transition not allowed")
	}
	if err := s.enrollments.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	return s.Get(ctx, id)
}

// SetHost flags an enrollment as the host for its next occurrence. Only
// active enrollments can host.
func (s *EnrollmentService) SetHost(ctx context.Context, id string, hostDate *time.Time) (*models.Enrollment, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !enrollment.CanBeHost() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only active enrollments can host")
	}
	if err := s.enrollments.SetHost(ctx, id, true, hostDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set host")
	}
	return s.Get(ctx, id)
}

// ClearHost removes the host flag from an enrollment.
func (s *EnrollmentService) ClearHost(ctx context.Context, id string) (*models.Enrollment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.enrollments.SetHost(ctx, id, false, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear host")
	}
	return s.Get(ctx, id)
}

// HostOn resolves the hosting enrollment for a session date, if any.
func (s *EnrollmentService) HostOn(ctx context.Context, sessionID string, date time.Time) (*models.Enrollment, error) {
	host, err := s.enrollments.HostOn(ctx, sessionID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no host assigned for that date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load host")
	}
	return host, nil
}

func transitionAllowed(from, to models.EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
