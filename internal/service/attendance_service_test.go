package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
)

type stubAttendanceRepo struct {
	existing  *models.AttendanceRecord
	findErr   error
	upserted  *models.AttendanceRecord
	deleted   []string
	deleteErr error
	history   []models.AttendanceHistoryRow
}

func (s *stubAttendanceRepo) Upsert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	s.upserted = record
	return record, nil
}

func (s *stubAttendanceRepo) List(_ context.Context, _ models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return nil, 0, nil
}

func (s *stubAttendanceRepo) FindByEnrollmentDate(_ context.Context, _ string, _ time.Time) (*models.AttendanceRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.existing == nil {
		return nil, sql.ErrNoRows
	}
	return s.existing, nil
}

func (s *stubAttendanceRepo) History(_ context.Context, _ string, _, _ *time.Time) ([]models.AttendanceHistoryRow, error) {
	return s.history, nil
}

func (s *stubAttendanceRepo) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type stubEnrollmentLookup struct {
	enrollment *models.Enrollment
	err        error
}

func (s *stubEnrollmentLookup) FindByID(_ context.Context, _ string) (*models.Enrollment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.enrollment, nil
}

type stubSessionLookup struct {
	session *models.Session
}

func (s *stubSessionLookup) FindByID(_ context.Context, _ string) (*models.Session, error) {
	return s.session, nil
}

type stubAuditWriter struct {
	entries []*models.AuditLog
}

func (s *stubAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.entries = append(s.entries, log)
	return nil
}

type attendanceFixture struct {
	attendance *stubAttendanceRepo
	audits     *stubAuditWriter
	scores     *stubScoreInvalidator
	svc        *AttendanceService
}

// Monday for the fixture session schedule.
var markDate = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func newAttendanceFixture(t *testing.T) *attendanceFixture {
	t.Helper()

	session := &models.Session{
		ID:           testSessionID,
		OwnerID:      "teacher-1",
		Weekdays:     "1,3",
		StartTime:    "09:00",
		EndTime:      "12:00",
		GraceMinutes: 15,
	}
	enrollment := &models.Enrollment{
		ID:        testEnrollmentID,
		SessionID: session.ID,
		Status:    models.EnrollmentStatusActive,
	}

	f := &attendanceFixture{
		attendance: &stubAttendanceRepo{},
		audits:     &stubAuditWriter{},
		scores:     &stubScoreInvalidator{},
	}
	f.svc = NewAttendanceService(
		f.attendance,
		&stubEnrollmentLookup{enrollment: enrollment},
		&stubSessionLookup{session: session},
		f.audits,
		f.scores,
		nil, nil,
	)
	return f
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestMarkOnTime(t *testing.T) {
	f := newAttendanceFixture(t)

	record, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusOnTime,
		ActorID:      "teacher-1",
	})
	require.NoError(t, err)

	assert.Equal(t, evaluation.StatusOnTime, record.Status)
	assert.Equal(t, []string{testEnrollmentID}, f.scores.enrollmentIDs)
	assert.Empty(t, f.audits.entries)
}

func TestMarkExcusedRequiresReason(t *testing.T) {
	f := newAttendanceFixture(t)

	cases := []*string{nil, strPtr(""), strPtr("   ")}
	for _, reason := range cases {
		_, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
			EnrollmentID: testEnrollmentID,
			Date:         markDate,
			Status:       evaluation.StatusExcused,
			ExcuseReason: reason,
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidExcuseReason.Code, appErrors.FromError(err).Code)
	}

	record, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusExcused,
		ExcuseReason: strPtr("medical appointment"),
	})
	require.NoError(t, err)
	assert.Equal(t, evaluation.StatusExcused, record.Status)
}

func TestMarkLateSeverity(t *testing.T) {
	f := newAttendanceFixture(t)

	// 180 minute session with 15 minutes grace: cutover at 165 minutes.
	moderate, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusLate,
		MinutesLate:  intPtr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, evaluation.SeverityModerate, moderate.LateSeverity)

	missed, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusLate,
		MinutesLate:  intPtr(170),
	})
	require.NoError(t, err)
	assert.Equal(t, evaluation.SeverityMissed, missed.LateSeverity)
}

func TestMarkRejectsMinutesForNonLate(t *testing.T) {
	f := newAttendanceFixture(t)

	_, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusAbsent,
		MinutesLate:  intPtr(5),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMarkRejectsNonMeetingDate(t *testing.T) {
	f := newAttendanceFixture(t)

	_, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate.AddDate(0, 0, 1), // Tuesday, session meets Mon/Wed
		Status:       evaluation.StatusOnTime,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRemarkWritesAudit(t *testing.T) {
	f := newAttendanceFixture(t)
	f.attendance.existing = &models.AttendanceRecord{
		ID:           "record-1",
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusAbsent,
	}

	record, err := f.svc.Mark(context.Background(), MarkAttendanceRequest{
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusOnTime,
		ActorID:      "teacher-1",
	})
	require.NoError(t, err)

	require.Len(t, f.audits.entries, 1)
	entry := f.audits.entries[0]
	assert.Equal(t, models.AuditActionAttendanceRemark, entry.Action)

	var old models.AttendanceRecord
	require.NoError(t, json.Unmarshal(entry.OldValues, &old))
	assert.Equal(t, evaluation.StatusAbsent, old.Status)
	assert.Equal(t, evaluation.StatusOnTime, record.Status)
}

func TestDeleteWritesAudit(t *testing.T) {
	f := newAttendanceFixture(t)
	f.attendance.existing = &models.AttendanceRecord{
		ID:           "record-1",
		EnrollmentID: testEnrollmentID,
		Date:         markDate,
		Status:       evaluation.StatusLate,
	}

	err := f.svc.Delete(context.Background(), testEnrollmentID, markDate, "admin-1", "10.0.0.1", "cli")
	require.NoError(t, err)

	assert.Equal(t, []string{"record-1"}, f.attendance.deleted)
	require.Len(t, f.audits.entries, 1)
	assert.Equal(t, models.AuditActionAttendanceDelete, f.audits.entries[0].Action)
	assert.NotEmpty(t, f.audits.entries[0].OldValues)
	assert.Equal(t, []string{testEnrollmentID}, f.scores.enrollmentIDs)
}

func TestDeleteMissingRecord(t *testing.T) {
	f := newAttendanceFixture(t)

	err := f.svc.Delete(context.Background(), testEnrollmentID, markDate, "admin-1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.audits.entries)
}
