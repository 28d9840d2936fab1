package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	UpdateSchedule(ctx context.Context, session *models.Session) error
	UpdateName(ctx context.Context, id, name string) error
	HasAttendance(ctx context.Context, sessionID string) (bool, error)
}

// CreateSessionRequest defines a new recurring session.
type CreateSessionRequest struct {
	Name            string   `json:"name" validate:"required,min=2,max=120"`
	Weekdays        []int    `json:"weekdays" validate:"required,min=1,max=7,dive,gte=0,lte=6"`
	StartTime       string   `json:"start_time" validate:"required"`
	EndTime         string   `json:"end_time" validate:"required"`
	GraceMinutes    int      `json:"grace_minutes" validate:"gte=0"`
	ProximityRadius float64  `json:"proximity_radius_m" validate:"gte=0"`
	HostLatitude    *float64 `json:"host_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	HostLongitude   *float64 `json:"host_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	HostAddress     *string  `json:"host_address,omitempty"`

	OwnerID string `json:"-"`
}

// UpdateScheduleRequest corrects a session's recurring schedule. Schedule
// corrections stay allowed after attendance exists; other mutations do not.
type UpdateScheduleRequest struct {
	Weekdays        []int    `json:"weekdays" validate:"required,min=1,max=7,dive,gte=0,lte=6"`
	StartTime       string   `json:"start_time" validate:"required"`
	EndTime         string   `json:"end_time" validate:"required"`
	GraceMinutes    int      `json:"grace_minutes" validate:"gte=0"`
	ProximityRadius float64  `json:"proximity_radius_m" validate:"gte=0"`
	HostLatitude    *float64 `json:"host_latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	HostLongitude   *float64 `json:"host_longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	HostAddress     *string  `json:"host_address,omitempty"`
}

// SessionService manages recurring session definitions.
type SessionService struct {
	sessions  sessionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService instance.
func NewSessionService(sessions sessionRepository, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{sessions: sessions, validator: validate, logger: logger}
}

// Create persists a new session owned by the acting teacher. Grace minutes
// are clamped to the supported range before persisting.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if err := validateClockRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:              uuid.NewString(),
		OwnerID:         req.OwnerID,
		Name:            req.Name,
		Weekdays:        joinWeekdays(req.Weekdays),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		GraceMinutes:    evaluation.ClampGrace(req.GraceMinutes),
		ProximityRadius: req.ProximityRadius,
		HostLatitude:    req.HostLatitude,
		HostLongitude:   req.HostLongitude,
		HostAddress:     req.HostAddress,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// Get returns one session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// List returns sessions matching the filter with a total count.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, total, nil
}

// UpdateSchedule applies a schedule correction to the session.
func (s *SessionService) UpdateSchedule(ctx context.Context, id string, actorID string, actorRole models.UserRole, req UpdateScheduleRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := validateClockRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole == models.RoleTeacher && session.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
	}

	session.Weekdays = joinWeekdays(req.Weekdays)
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.GraceMinutes = evaluation.ClampGrace(req.GraceMinutes)
	session.ProximityRadius = req.ProximityRadius
	session.HostLatitude = req.HostLatitude
	session.HostLongitude = req.HostLongitude
	session.HostAddress = req.HostAddress

	if err := s.sessions.UpdateSchedule(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return session, nil
}

// Rename changes the session name. Renames are blocked once attendance
// history references the session; only schedule corrections stay open.
func (s *SessionService) Rename(ctx context.Context, id, name, actorID string, actorRole models.UserRole) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorRole == models.RoleTeacher && session.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another teacher")
	}

	has, err := s.sessions.HasAttendance(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance history")
	}
	if has {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session has attendance history")
	}

	if err := s.sessions.UpdateName(ctx, id, name); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename session")
	}
	session.Name = name
	return session, nil
}

func joinWeekdays(days []int) string {
	seen := make(map[int]bool, len(days))
	parts := make([]string, 0, len(days))
	for _, day := range days {
		if seen[day] {
			continue
		}
		seen[day] = true
		parts = append(parts, strconv.Itoa(day))
	}
	return strings.Join(parts, ",")
}

func validateClockRange(start, end string) error {
	startAt, err := time.Parse("15:04", start)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:MM")
	}
	endAt, err := time.Parse("15:04", end)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:MM")
	}
	if !endAt.After(startAt) {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return nil
}
