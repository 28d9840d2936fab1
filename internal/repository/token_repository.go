package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baraatakala/training-center-sub003/internal/models"
)

// TokenRepository handles persistence for check-in tokens.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs the repository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, session_id, attendance_date, kind, token, expires_at, is_valid, used_count, created_at, closed_at`

// Create persists a freshly issued token.
func (r *TokenRepository) Create(ctx context.Context, token *models.CheckInToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO checkin_tokens (id, session_id, attendance_date, kind, token, expires_at, is_valid, used_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.SessionID, token.AttendanceDate, token.Kind, token.Token,
		token.ExpiresAt, token.IsValid, token.UsedCount, token.CreatedAt); err != nil {
		return fmt.Errorf("create checkin token: %w", err)
	}
	return nil
}

// FindByValue loads a token by its opaque value.
func (r *TokenRepository) FindByValue(ctx context.Context, value string) (*models.CheckInToken, error) {
	var token models.CheckInToken
	query := fmt.Sprintf(`SELECT %s FROM checkin_tokens WHERE token = $1`, tokenColumns)
	if err := r.db.GetContext(ctx, &token, query, value); err != nil {
		return nil, err
	}
	return &token, nil
}

// FindActive returns the newest open token for a session and date.
func (r *TokenRepository) FindActive(ctx context.Context, sessionID string, date time.Time, now time.Time) (*models.CheckInToken, error) {
	var token models.CheckInToken
	query := fmt.Sprintf(`SELECT %s FROM checkin_tokens
WHERE session_id = $1 AND attendance_date = $2 AND is_valid = true AND expires_at > $3
ORDER BY created_at DESC LIMIT 1`, tokenColumns)
	if err := r.db.GetContext(ctx, &token, query, sessionID, date, now); err != nil {
		return nil, err
	}
	return &token, nil
}

// Invalidate closes a check-in window regardless of expiry.
func (r *TokenRepository) Invalidate(ctx context.Context, id string, closedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkin_tokens SET is_valid = false, closed_at = $2 WHERE id = $1`, id, closedAt)
	if err != nil {
		return fmt.Errorf("invalidate checkin token: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("checkin token %s not found", id)
	}
	return nil
}

// IncrementUsage bumps used_count after a successful attendance write.
func (r *TokenRepository) IncrementUsage(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE checkin_tokens SET used_count = used_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("increment token usage: %w", err)
	}
	return nil
}
