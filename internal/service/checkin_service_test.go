package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type stubCheckInTokenRepo struct {
	token       *models.CheckInToken
	findErr     error
	incremented int
	incErr      error
}

func (s *stubCheckInTokenRepo) FindByValue(_ context.Context, _ string) (*models.CheckInToken, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.token, nil
}

func (s *stubCheckInTokenRepo) IncrementUsage(_ context.Context, _ string) error {
	s.incremented++
	return s.incErr
}

type stubCheckInSessionRepo struct {
	session *models.Session
	err     error
}

func (s *stubCheckInSessionRepo) FindByID(_ context.Context, _ string) (*models.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubCheckInEnrollmentRepo struct {
	enrollment *models.Enrollment
	err        error
}

func (s *stubCheckInEnrollmentRepo) FindActive(_ context.Context, _, _ string) (*models.Enrollment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.enrollment, nil
}

type stubCheckInAttendanceRepo struct {
	inserted  *models.AttendanceRecord
	insertErr error
}

func (s *stubCheckInAttendanceRepo) Insert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.inserted = record
	return record, nil
}

type stubScoreInvalidator struct {
	enrollmentIDs []string
}

func (s *stubScoreInvalidator) InvalidateEnrollment(_ context.Context, enrollmentID string) {
	s.enrollmentIDs = append(s.enrollmentIDs, enrollmentID)
}

type stubCheckInObserver struct {
	outcomes []string
}

func (s *stubCheckInObserver) ObserveCheckIn(outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

type checkInFixture struct {
	tokens      *stubCheckInTokenRepo
	sessions    *stubCheckInSessionRepo
	enrollments *stubCheckInEnrollmentRepo
	attendance  *stubCheckInAttendanceRepo
	scores      *stubScoreInvalidator
	observer    *stubCheckInObserver
	svc         *CheckInService
}

func floatPtr(v float64) *float64 { return &v }

func newCheckInFixture(t *testing.T, now time.Time) *checkInFixture {
	t.Helper()

	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	session := &models.Session{
		ID:           testSessionID,
		OwnerID:      "teacher-1",
		Name:         "Go Fundamentals",
		Weekdays:     "1,3",
		StartTime:    "09:00",
		EndTime:      "12:00",
		GraceMinutes: 15,
	}
	token := &models.CheckInToken{
		ID:             "token-1",
		SessionID:      session.ID,
		AttendanceDate: date,
		Kind:           models.TokenKindQR,
		Token:          "qr-value",
		ExpiresAt:      now.Add(20 * time.Minute),
		IsValid:        true,
	}
	enrollment := &models.Enrollment{
		ID:        testEnrollmentID,
		StudentID: "student-1",
		SessionID: session.ID,
		Status:    models.EnrollmentStatusActive,
	}

	f := &checkInFixture{
		tokens:      &stubCheckInTokenRepo{token: token},
		sessions:    &stubCheckInSessionRepo{session: session},
		enrollments: &stubCheckInEnrollmentRepo{enrollment: enrollment},
		attendance:  &stubCheckInAttendanceRepo{},
		scores:      &stubScoreInvalidator{},
		observer:    &stubCheckInObserver{},
	}
	f.svc = NewCheckInService(f.tokens, f.sessions, f.enrollments, f.attendance, nil, f.scores, f.observer, nil, nil)
	f.svc.now = func() time.Time { return now }
	return f
}

func validCheckInRequest() CheckInRequest {
	return CheckInRequest{
		Token:     "qr-value",
		SessionID: testSessionID,
		StudentID: "student-1",
	}
}

// Monday 2026-03-02, ten minutes after class start.
const (
	testSessionID    = "7b19a2a5-3f5f-4a4b-9a6e-0d1f2a3b4c5d"
	testEnrollmentID = "9f8c1b0a-2d3e-4f50-8a6b-7c8d9e0f1a2b"
)

var checkInNow = time.Date(2026, time.March, 2, 9, 10, 0, 0, time.UTC)

func TestCheckInOnTime(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)

	record, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.NoError(t, err)

	assert.Equal(t, evaluation.StatusOnTime, record.Status)
	assert.Nil(t, record.MinutesLate)
	require.NotNil(t, record.CheckInAt)
	assert.Equal(t, testEnrollmentID, record.EnrollmentID)
	assert.Equal(t, 1, f.tokens.incremented)
	assert.Equal(t, []string{testEnrollmentID}, f.scores.enrollmentIDs)
	assert.Equal(t, []string{CheckInOutcomeAccepted}, f.observer.outcomes)
}

func TestCheckInLateAfterGrace(t *testing.T) {
	f := newCheckInFixture(t, checkInNow.Add(10*time.Minute)) // 09:20, grace ends 09:15

	record, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.NoError(t, err)

	assert.Equal(t, evaluation.StatusLate, record.Status)
	require.NotNil(t, record.MinutesLate)
	assert.Equal(t, 5, *record.MinutesLate)
	assert.Equal(t, evaluation.SeverityModerate, record.LateSeverity)
}

func TestCheckInAfterSessionEnd(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	after := time.Date(2026, time.March, 2, 12, 5, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return after }
	f.tokens.token.ExpiresAt = after.Add(time.Minute)

	record, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.NoError(t, err)

	assert.Equal(t, evaluation.StatusLate, record.Status)
	assert.Equal(t, evaluation.SeverityMissed, record.LateSeverity)
	require.NotNil(t, record.MinutesLate)
	assert.Equal(t, 170, *record.MinutesLate)
}

func TestCheckInExpiredToken(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.token.ExpiresAt = checkInNow.Add(-time.Minute)

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{CheckInOutcomeTokenRejected}, f.observer.outcomes)
	assert.Zero(t, f.tokens.incremented)
}

func TestCheckInInvalidatedToken(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.token.IsValid = false

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenInvalidated.Code, appErrors.FromError(err).Code)
}

func TestCheckInExpiryWinsOverInvalidation(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.token.IsValid = false
	f.tokens.token.ExpiresAt = checkInNow.Add(-time.Minute)

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestCheckInUnknownToken(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.findErr = sql.ErrNoRows

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenNotFound.Code, appErrors.FromError(err).Code)
}

func TestCheckInSessionMismatch(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	req := validCheckInRequest()
	req.SessionID = "a3c5b1d2-0000-4000-8000-000000000000"

	_, err := f.svc.CheckIn(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionMismatch.Code, appErrors.FromError(err).Code)
}

func TestCheckInNoActiveEnrollment(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.enrollments.err = sql.ErrNoRows

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCheckInConsumedTokenStillUsable(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.token.UsedCount = 3

	record, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.NoError(t, err)
	assert.Equal(t, evaluation.StatusOnTime, record.Status)
}

func TestCheckInOutOfRange(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.sessions.session.ProximityRadius = 100
	f.sessions.session.HostLatitude = floatPtr(51.5007)
	f.sessions.session.HostLongitude = floatPtr(-0.1246)

	req := validCheckInRequest()
	req.Latitude = floatPtr(48.8566) // Paris, far outside 100m of London
	req.Longitude = floatPtr(2.3522)

	_, err := f.svc.CheckIn(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutOfRange.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{CheckInOutcomeOutOfRange}, f.observer.outcomes)
	assert.Nil(t, f.attendance.inserted)
}

func TestCheckInWithinRange(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.sessions.session.ProximityRadius = 100
	f.sessions.session.HostLatitude = floatPtr(51.5007)
	f.sessions.session.HostLongitude = floatPtr(-0.1246)

	req := validCheckInRequest()
	req.Latitude = floatPtr(51.5008)
	req.Longitude = floatPtr(-0.1247)

	record, err := f.svc.CheckIn(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, evaluation.StatusOnTime, record.Status)
	require.NotNil(t, record.Latitude)
}

func TestCheckInMissingLocationWhenRequired(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.sessions.session.ProximityRadius = 100
	f.sessions.session.HostLatitude = floatPtr(51.5007)
	f.sessions.session.HostLongitude = floatPtr(-0.1246)

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCheckInDuplicate(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	dup := assertDuplicateErr{}
	f.attendance.insertErr = dup
	f.svc.isDuplicate = func(err error) bool { return err == dup }

	_, err := f.svc.CheckIn(context.Background(), validCheckInRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAttendance.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{CheckInOutcomeDuplicate}, f.observer.outcomes)
	assert.Zero(t, f.tokens.incremented)
	assert.Empty(t, f.scores.enrollmentIDs)
}

type assertDuplicateErr struct{}

func (assertDuplicateErr) Error() string { return "duplicate key value" }

func TestValidateTokenReadOnly(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)

	first, err := f.svc.ValidateToken(context.Background(), "qr-value", testSessionID)
	require.NoError(t, err)
	second, err := f.svc.ValidateToken(context.Background(), "qr-value", testSessionID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.TokenStateActive, first.State)
	assert.True(t, first.Usable)
	assert.Zero(t, f.tokens.incremented)
}

func TestValidateTokenExpiredState(t *testing.T) {
	f := newCheckInFixture(t, checkInNow)
	f.tokens.token.ExpiresAt = checkInNow.Add(-time.Second)

	result, err := f.svc.ValidateToken(context.Background(), "qr-value", "")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStateExpired, result.State)
	assert.False(t, result.Usable)
}
