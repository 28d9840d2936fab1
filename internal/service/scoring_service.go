package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type scoringAttendanceRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error)
}

type scoringEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type scoringSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type scoringConfigRepository interface {
	FindByOwner(ctx context.Context, ownerID string) (*models.ScoringConfig, error)
	Upsert(ctx context.Context, config *models.ScoringConfig) (*models.ScoringConfig, error)
}

type scoringCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type scoringAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type scoringObserver interface {
	ObserveScoreComputation(duration time.Duration)
	RecordCacheLookup(hit bool)
}

// UpdateScoringConfigRequest replaces a teacher's aggregation settings.
type UpdateScoringConfigRequest struct {
	WeightQuality     float64 `json:"weight_quality" validate:"gte=0,lte=100"`
	WeightAttendance  float64 `json:"weight_attendance" validate:"gte=0,lte=100"`
	WeightPunctuality float64 `json:"weight_punctuality" validate:"gte=0,lte=100"`
	LateDecayConstant float64 `json:"late_decay_constant" validate:"gt=0"`
	LateMinimumCredit float64 `json:"late_minimum_credit" validate:"gte=0,lte=1"`
	LateNullEstimate  float64 `json:"late_null_estimate" validate:"gte=0"`
	CoverageMethod    string  `json:"coverage_method" validate:"required"`
	CoverageMinimum   float64 `json:"coverage_minimum" validate:"gte=0,lte=1"`

	ActorID   string `json:"-"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ScoringService computes weighted enrollment scores and manages per-owner
// aggregation settings.
type ScoringService struct {
	attendance  scoringAttendanceRepository
	enrollments scoringEnrollmentRepository
	sessions    scoringSessionRepository
	configs     scoringConfigRepository
	cache       scoringCache
	audits      scoringAuditWriter
	metrics     scoringObserver
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewScoringService constructs a ScoringService instance.
func NewScoringService(
	attendance scoringAttendanceRepository,
	enrollments scoringEnrollmentRepository,
	sessions scoringSessionRepository,
	configs scoringConfigRepository,
	cache scoringCache,
	audits scoringAuditWriter,
	metrics scoringObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ScoringService{
		attendance:  attendance,
		enrollments: enrollments,
		sessions:    sessions,
		configs:     configs,
		cache:       cache,
		audits:      audits,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

func scoreCacheKey(enrollmentID string) string {
	return fmt.Sprintf("scores:enrollment:%s", enrollmentID)
}

// Score computes the weighted score for one enrollment. Results are cached;
// attendance writes invalidate the cached entry.
func (s *ScoringService) Score(ctx context.Context, enrollmentID string) (*models.ScoreReport, error) {
	key := scoreCacheKey(enrollmentID)
	if s.cache != nil {
		var cached models.ScoreReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordLookup(true)
			return &cached, nil
		}
		s.recordLookup(false)
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
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

	cfg, err := s.configForOwner(ctx, session.OwnerID)
	if err != nil {
		return nil, err
	}

	records, err := s.attendance.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	observations := make([]evaluation.Observation, 0, len(records))
	for _, record := range records {
		observations = append(observations, record.Observation())
	}

	now := s.now().UTC()
	started := now
	summary, err := evaluation.Score(observations, s.totalPossibleDays(session, enrollment, now), cfg)
	if err != nil {
		switch {
		case errors.Is(err, evaluation.ErrInsufficientData):
			return nil, appErrors.Clone(appErrors.ErrInsufficientData, "")
		case errors.Is(err, evaluation.ErrInvalidWeights):
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute score")
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveScoreComputation(time.Since(started))
	}

	report := &models.ScoreReport{
		EnrollmentID: enrollment.ID,
		SessionID:    session.ID,
		Summary:      *summary,
		ComputedAt:   now,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache score", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}
	return report, nil
}

// Config returns the owner's aggregation settings, falling back to defaults
// when none have been saved yet.
func (s *ScoringService) Config(ctx context.Context, ownerID string) (*models.ScoringConfig, error) {
	stored, err := s.configs.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			def := models.DefaultScoringConfig(ownerID)
			return &def, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scoring config")
	}
	return stored, nil
}

// UpdateConfig validates and persists the owner's aggregation settings, then
// drops every cached score so the next read reflects the new weights.
func (s *ScoringService) UpdateConfig(ctx context.Context, ownerID string, req UpdateScoringConfigRequest) (*models.ScoringConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scoring config payload")
	}

	candidate := evaluation.Config{
		WeightQuality:     req.WeightQuality,
		WeightAttendance:  req.WeightAttendance,
		WeightPunctuality: req.WeightPunctuality,
		LateDecayConstant: req.LateDecayConstant,
		LateMinimumCredit: req.LateMinimumCredit,
		LateNullEstimate:  req.LateNullEstimate,
		CoverageMethod:    evaluation.CoverageMethod(req.CoverageMethod),
		CoverageMinimum:   req.CoverageMinimum,
	}
	if err := candidate.ValidateWeights(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "")
	}
	if !candidate.CoverageMethod.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported coverage method")
	}

	actor := req.ActorID
	row := &models.ScoringConfig{
		OwnerID:           ownerID,
		WeightQuality:     req.WeightQuality,
		WeightAttendance:  req.WeightAttendance,
		WeightPunctuality: req.WeightPunctuality,
		LateDecayConstant: req.LateDecayConstant,
		LateMinimumCredit: req.LateMinimumCredit,
		LateNullEstimate:  req.LateNullEstimate,
		CoverageMethod:    req.CoverageMethod,
		CoverageMinimum:   req.CoverageMinimum,
		UpdatedBy:         &actor,
	}
	saved, err := s.configs.Upsert(ctx, row)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scoring config")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "scores:enrollment:*"); err != nil {
			s.logger.Warn("failed to invalidate cached scores", zap.Error(err))
		}
	}
	if s.audits != nil {
		rid := saved.ID
		var newValues []byte
		if raw, merr := json.Marshal(saved); merr == nil {
			newValues = raw
		}
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor,
			Action:     models.AuditActionScoringUpdate,
			Resource:   "scoring_config",
			ResourceID: &rid,
			NewValues:  newValues,
			IPAddress:  req.IP,
			UserAgent:  req.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to write audit log", zap.Error(err))
		}
	}
	return saved, nil
}

// InvalidateEnrollment drops the cached score for one enrollment. Called by
// every write path that changes attendance for it.
func (s *ScoringService) InvalidateEnrollment(ctx context.Context, enrollmentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, scoreCacheKey(enrollmentID)); err != nil {
		s.logger.Warn("failed to invalidate cached score",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

func (s *ScoringService) recordLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}
}

func (s *ScoringService) configForOwner(ctx context.Context, ownerID string) (evaluation.Config, error) {
	stored, err := s.Config(ctx, ownerID)
	if err != nil {
		return evaluation.Config{}, err
	}
	return stored.Evaluation(), nil
}

// totalPossibleDays counts the session's scheduled occurrences between the
// enrollment start and the earlier of its end date and today.
func (s *ScoringService) totalPossibleDays(session *models.Session, enrollment *models.Enrollment, now time.Time) int {
	start := enrollment.StartDate
	end := now
	if enrollment.EndDate != nil && enrollment.EndDate.Before(end) {
		end = *enrollment.EndDate
	}
	if end.Before(start) {
		return 0
	}

	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if session.OccursOn(day) {
			count++
		}
	}
	return count
}
