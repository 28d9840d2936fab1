package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "enrollment_id", "date", "status", "minutes_late", "late_severity",
		"check_in_at", "latitude", "longitude", "gps_accuracy", "excuse_reason", "host_address",
		"created_at", "updated_at",
	}).AddRow("att-1", "enr-1", now, evaluation.StatusOnTime, nil, "",
		now, nil, nil, nil, nil, nil, now, now)
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnRows(attendanceRows())

	now := time.Now()
	stored, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		EnrollmentID: "enr-1",
		Date:         now,
		Status:       evaluation.StatusOnTime,
		CheckInAt:    &now,
	})
	require.NoError(t, err)
	require.Equal(t, "att-1", stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "attendance_records_enrollment_id_date_key"})

	_, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		EnrollmentID: "enr-1",
		Date:         time.Now(),
		Status:       evaluation.StatusOnTime,
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpsertOverwrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO attendance_records").WillReturnRows(attendanceRows())

	_, err := repo.Upsert(context.Background(), &models.AttendanceRecord{
		EnrollmentID: "enr-1",
		Date:         time.Now(),
		Status:       evaluation.StatusExcused,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"date", "status", "minutes_late", "excuse_reason"}).
		AddRow(time.Now(), evaluation.StatusLate, 5, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date, status, minutes_late, excuse_reason FROM attendance_records WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	history, err := repo.History(context.Background(), "enr-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, evaluation.StatusLate, history[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_records WHERE id = $1")).
		WithArgs("att-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "att-404")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("plain")))
}
