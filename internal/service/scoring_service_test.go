package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type stubScoringAttendanceRepo struct {
	records []models.AttendanceRecord
	err     error
	calls   int
}

func (s *stubScoringAttendanceRepo) ListByEnrollment(_ context.Context, _ string) ([]models.AttendanceRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type stubScoringEnrollmentRepo struct {
	enrollment *models.Enrollment
	err        error
}

func (s *stubScoringEnrollmentRepo) FindByID(_ context.Context, _ string) (*models.Enrollment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.enrollment, nil
}

type stubScoringSessionRepo struct {
	session *models.Session
}

func (s *stubScoringSessionRepo) FindByID(_ context.Context, _ string) (*models.Session, error) {
	return s.session, nil
}

type stubScoringConfigRepo struct {
	config  *models.ScoringConfig
	findErr error
	saved   *models.ScoringConfig
}

func (s *stubScoringConfigRepo) FindByOwner(_ context.Context, _ string) (*models.ScoringConfig, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.config, nil
}

func (s *stubScoringConfigRepo) Upsert(_ context.Context, config *models.ScoringConfig) (*models.ScoringConfig, error) {
	s.saved = config
	return config, nil
}

type stubScoringCache struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubScoringCache) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubScoringCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubScoringCache) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	return nil
}

type scoringFixture struct {
	attendance  *stubScoringAttendanceRepo
	enrollments *stubScoringEnrollmentRepo
	sessions    *stubScoringSessionRepo
	configs     *stubScoringConfigRepo
	cache       *stubScoringCache
	svc         *ScoringService
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	// Every weekday, four weeks of history before "now".
	session := &models.Session{
		ID:        testSessionID,
		OwnerID:   "teacher-1",
		Weekdays:  "1,2,3,4,5",
		StartTime: "09:00",
		EndTime:   "12:00",
	}
	start := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	enrollment := &models.Enrollment{
		ID:        testEnrollmentID,
		SessionID: session.ID,
		StartDate: start,
		Status:    models.EnrollmentStatusActive,
	}

	f := &scoringFixture{
		attendance:  &stubScoringAttendanceRepo{},
		enrollments: &stubScoringEnrollmentRepo{enrollment: enrollment},
		sessions:    &stubScoringSessionRepo{session: session},
		configs:     &stubScoringConfigRepo{findErr: sql.ErrNoRows},
		cache:       &stubScoringCache{},
	}
	f.svc = NewScoringService(f.attendance, f.enrollments, f.sessions, f.configs, f.cache, nil, nil, nil, nil, 0)
	f.svc.now = func() time.Time {
		return time.Date(2026, time.February, 27, 18, 0, 0, 0, time.UTC)
	}
	return f
}

func perfectWeek(start time.Time, days int) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, days)
	day := start
	for len(records) < days {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			records = append(records, models.AttendanceRecord{
				EnrollmentID: testEnrollmentID,
				Date:         day,
				Status:       "ON_TIME",
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return records
}

func TestScorePerfectAttendance(t *testing.T) {
	f := newScoringFixture(t)
	f.attendance.records = perfectWeek(f.enrollments.enrollment.StartDate, 20)

	report, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.NoError(t, err)

	assert.Equal(t, testEnrollmentID, report.EnrollmentID)
	assert.Equal(t, testSessionID, report.SessionID)
	assert.Equal(t, 20, report.Summary.EffectiveDays)
	assert.InDelta(t, 1.0, report.Summary.AttendanceRate, 1e-9)
	assert.InDelta(t, 1.0, report.Summary.PunctualityRate, 1e-9)
	assert.InDelta(t, 1.0, report.Summary.WeightedScore, 1e-9)
}

func TestScoreUsesCache(t *testing.T) {
	f := newScoringFixture(t)
	f.attendance.records = perfectWeek(f.enrollments.enrollment.StartDate, 20)

	first, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.NoError(t, err)
	second, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.attendance.calls)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestScoreInsufficientData(t *testing.T) {
	f := newScoringFixture(t)
	f.attendance.records = nil

	_, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientData.Code, appErrors.FromError(err).Code)
}

func TestScoreEnrollmentNotFound(t *testing.T) {
	f := newScoringFixture(t)
	f.enrollments.err = sql.ErrNoRows

	_, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScoreInvalidStoredWeights(t *testing.T) {
	f := newScoringFixture(t)
	f.attendance.records = perfectWeek(f.enrollments.enrollment.StartDate, 20)
	bad := models.DefaultScoringConfig("teacher-1")
	bad.WeightQuality = 70 // 70+30+20 != 100
	f.configs.findErr = nil
	f.configs.config = &bad

	_, err := f.svc.Score(context.Background(), testEnrollmentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)
}

func TestConfigFallsBackToDefaults(t *testing.T) {
	f := newScoringFixture(t)

	config, err := f.svc.Config(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, config.WeightQuality)
	assert.Equal(t, 30.0, config.WeightAttendance)
	assert.Equal(t, 20.0, config.WeightPunctuality)
	assert.Equal(t, "sqrt", config.CoverageMethod)
}

func TestUpdateConfigRejectsBadWeights(t *testing.T) {
	f := newScoringFixture(t)

	_, err := f.svc.UpdateConfig(context.Background(), "teacher-1", UpdateScoringConfigRequest{
		WeightQuality:     60,
		WeightAttendance:  30,
		WeightPunctuality: 20,
		LateDecayConstant: 43.3,
		LateMinimumCredit: 0.1,
		CoverageMethod:    "sqrt",
		CoverageMinimum:   0.5,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)
	assert.Nil(t, f.configs.saved)
}

func TestUpdateConfigInvalidatesCachedScores(t *testing.T) {
	f := newScoringFixture(t)

	saved, err := f.svc.UpdateConfig(context.Background(), "teacher-1", UpdateScoringConfigRequest{
		WeightQuality:     40,
		WeightAttendance:  40,
		WeightPunctuality: 20,
		LateDecayConstant: 30,
		LateMinimumCredit: 0.2,
		LateNullEstimate:  10,
		CoverageMethod:    "linear",
		CoverageMinimum:   0.4,
		ActorID:           "teacher-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, saved.WeightQuality)
	assert.Contains(t, f.cache.deleted, "scores:enrollment:*")
}

func TestInvalidateEnrollmentDropsKey(t *testing.T) {
	f := newScoringFixture(t)

	f.svc.InvalidateEnrollment(context.Background(), testEnrollmentID)
	assert.Equal(t, []string{"scores:enrollment:" + testEnrollmentID}, f.cache.deleted)
}
