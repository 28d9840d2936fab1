package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/baraatakala/training-center-sub003/internal/models"
)

func tokenRows(expiresAt time.Time, isValid bool, usedCount int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "session_id", "attendance_date", "kind", "token",
		"expires_at", "is_valid", "used_count", "created_at", "closed_at",
	}).AddRow("tok-1", "sess-1", now, models.TokenKindQR, "opaque-value",
		expiresAt, isValid, usedCount, now, nil)
}

func TestTokenRepositoryFindByValue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectQuery("SELECT .+ FROM checkin_tokens WHERE token").
		WithArgs("opaque-value").
		WillReturnRows(tokenRows(time.Now().Add(time.Hour), true, 0))

	token, err := repo.FindByValue(context.Background(), "opaque-value")
	require.NoError(t, err)
	require.Equal(t, "tok-1", token.ID)
	require.True(t, token.IsValid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec("INSERT INTO checkin_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.CheckInToken{
		SessionID:      "sess-1",
		AttendanceDate: time.Now(),
		Kind:           models.TokenKindQR,
		Token:          "opaque-value",
		ExpiresAt:      time.Now().Add(30 * time.Minute),
		IsValid:        true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryInvalidate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkin_tokens SET is_valid = false, closed_at = $2 WHERE id = $1")).
		WithArgs("tok-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Invalidate(context.Background(), "tok-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepositoryIncrementUsage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTokenRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkin_tokens SET used_count = used_count + 1 WHERE id = $1")).
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementUsage(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
