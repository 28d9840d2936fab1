package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/geo"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type checkInTokenRepository interface {
	FindByValue(ctx context.Context, value string) (*models.CheckInToken, error)
	IncrementUsage(ctx context.Context, id string) error
}

type checkInSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type checkInEnrollmentRepository interface {
	FindActive(ctx context.Context, studentID, sessionID string) (*models.Enrollment, error)
}

type checkInAttendanceRepository interface {
	Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
}

type uniqueViolationChecker func(err error) bool

type checkInScoreInvalidator interface {
	InvalidateEnrollment(ctx context.Context, enrollmentID string)
}

type checkInObserver interface {
	ObserveCheckIn(outcome string)
}

// CheckInRequest is a student check-in attempt against an open window.
type CheckInRequest struct {
	Token     string   `json:"token" validate:"required"`
	SessionID string   `json:"session_id" validate:"required,uuid"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Accuracy  *float64 `json:"gps_accuracy,omitempty" validate:"omitempty,gte=0"`

	StudentID string `json:"-"`
}

// TokenValidation is the read-only preflight result for a scanned token.
type TokenValidation struct {
	State          models.TokenState `json:"state"`
	Usable         bool              `json:"usable"`
	SessionID      string            `json:"session_id"`
	AttendanceDate time.Time         `json:"attendance_date"`
	Kind           models.TokenKind  `json:"kind"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// CheckInService drives the student self check-in flow.
type CheckInService struct {
	tokens      checkInTokenRepository
	sessions    checkInSessionRepository
	enrollments checkInEnrollmentRepository
	attendance  checkInAttendanceRepository
	isDuplicate uniqueViolationChecker
	scores      checkInScoreInvalidator
	metrics     checkInObserver
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCheckInService constructs a CheckInService instance.
func NewCheckInService(
	tokens checkInTokenRepository,
	sessions checkInSessionRepository,
	enrollments checkInEnrollmentRepository,
	attendance checkInAttendanceRepository,
	isDuplicate uniqueViolationChecker,
	scores checkInScoreInvalidator,
	metrics checkInObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *CheckInService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if isDuplicate == nil {
		isDuplicate = func(error) bool { return false }
	}
	return &CheckInService{
		tokens:      tokens,
		sessions:    sessions,
		enrollments: enrollments,
		attendance:  attendance,
		isDuplicate: isDuplicate,
		scores:      scores,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// ValidateToken resolves a scanned token without consuming it. The call is
// idempotent; repeated scans of the same token return the same result.
func (s *CheckInService) ValidateToken(ctx context.Context, tokenValue, sessionID string) (*TokenValidation, error) {
	token, err := s.findToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if sessionID != "" && token.SessionID != sessionID {
		return nil, appErrors.Clone(appErrors.ErrSessionMismatch, "")
	}

	now := s.now().UTC()
	return &TokenValidation{
		State:          token.State(now),
		Usable:         token.Usable(now),
		SessionID:      token.SessionID,
		AttendanceDate: token.AttendanceDate,
		Kind:           token.Kind,
		ExpiresAt:      token.ExpiresAt,
	}, nil
}

// CheckIn validates the token, gates on proximity, classifies punctuality and
// records attendance. The unique (enrollment, date) constraint is the only
// guard against concurrent duplicate check-ins; a conflicting insert surfaces
// as ErrDuplicateAttendance and the token stays usable for other students.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	token, err := s.findToken(ctx, req.Token)
	if err != nil {
		s.observe(CheckInOutcomeTokenRejected)
		return nil, err
	}

	now := s.now().UTC()
	switch token.State(now) {
	case models.TokenStateExpired:
		s.observe(CheckInOutcomeTokenRejected)
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "")
	case models.TokenStateInvalidated:
		s.observe(CheckInOutcomeTokenRejected)
		return nil, appErrors.Clone(appErrors.ErrTokenInvalidated, "")
	}

	if token.SessionID != req.SessionID {
		s.observe(CheckInOutcomeTokenRejected)
		return nil, appErrors.Clone(appErrors.ErrSessionMismatch, "")
	}

	session, err := s.sessions.FindByID(ctx, token.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	enrollment, err := s.enrollments.FindActive(ctx, req.StudentID, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(CheckInOutcomeTokenRejected)
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no active enrollment for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if session.ProximityEnabled() {
		if req.Latitude == nil || req.Longitude == nil {
			s.observe(CheckInOutcomeOutOfRange)
			return nil, appErrors.Clone(appErrors.ErrValidation, "location is required for this session")
		}
		student := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
		host := geo.Coordinate{Latitude: *session.HostLatitude, Longitude: *session.HostLongitude}
		if !geo.WithinRadius(student, host, session.ProximityRadius) {
			s.observe(CheckInOutcomeOutOfRange)
			return nil, appErrors.Clone(appErrors.ErrOutOfRange, "")
		}
	}

	window, err := session.WindowOn(token.AttendanceDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid session schedule")
	}
	result := evaluation.Classify(window, now.In(token.AttendanceDate.Location()))

	minutesLate := result.MinutesLate
	record := &models.AttendanceRecord{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		Date:         token.AttendanceDate,
		Status:       result.Status,
		CheckInAt:    &now,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		GPSAccuracy:  req.Accuracy,
		HostAddress:  session.HostAddress,
	}
	if result.Status == evaluation.StatusLate {
		record.MinutesLate = &minutesLate
		record.LateSeverity = result.Severity
	}

	saved, err := s.attendance.Insert(ctx, record)
	if err != nil {
		if s.isDuplicate(err) {
			s.observe(CheckInOutcomeDuplicate)
			return nil, appErrors.Clone(appErrors.ErrDuplicateAttendance, "")
		}
		s.observe(CheckInOutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if err := s.tokens.IncrementUsage(ctx, token.ID); err != nil {
		s.logger.Warn("failed to increment token usage",
			zap.String("token_id", token.ID), zap.Error(err))
	}
	if s.scores != nil {
		s.scores.InvalidateEnrollment(ctx, enrollment.ID)
	}
	s.observe(CheckInOutcomeAccepted)

	s.logger.Info("check-in recorded",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("session_id", session.ID),
		zap.String("status", string(saved.Status)))

	return saved, nil
}

func (s *CheckInService) findToken(ctx context.Context, value string) (*models.CheckInToken, error) {
	token, err := s.tokens.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load token")
	}
	return token, nil
}

func (s *CheckInService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveCheckIn(outcome)
	}
}
