package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/baraatakala/training-center-sub003/internal/models"
)

// SessionRepository handles persistence for recurring sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, owner_id, name, weekdays, start_time, end_time, grace_minutes, proximity_radius_m, host_latitude, host_longitude, host_address, created_at, updated_at`

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	query := `INSERT INTO sessions (id, owner_id, name, weekdays, start_time, end_time, grace_minutes, proximity_radius_m, host_latitude, host_longitude, host_address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.OwnerID, session.Name, session.Weekdays, session.StartTime, session.EndTime,
		session.GraceMinutes, session.ProximityRadius, session.HostLatitude, session.HostLongitude,
		session.HostAddress, session.CreatedAt, session.UpdatedAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID loads one session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns)
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching the filter along with the total count.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.OwnerID != "" {
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"name":       "name",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		sessionColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.Session
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sessions WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return rows, total, nil
}

// UpdateSchedule corrects the session's schedule fields. Other attributes
// stay frozen once attendance history references the session.
func (r *SessionRepository) UpdateSchedule(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	query := `UPDATE sessions
SET weekdays = $2, start_time = $3, end_time = $4, grace_minutes = $5, proximity_radius_m = $6,
    host_latitude = $7, host_longitude = $8, host_address = $9, updated_at = $10
WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		session.ID, session.Weekdays, session.StartTime, session.EndTime, session.GraceMinutes,
		session.ProximityRadius, session.HostLatitude, session.HostLongitude, session.HostAddress, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session schedule: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("session %s not found", session.ID)
	}
	return nil
}

// UpdateName renames the session.
func (r *SessionRepository) UpdateName(ctx context.Context, id, name string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET name = $2, updated_at = $3 WHERE id = $1`, id, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session name: %w", err)
	}
	return nil
}

// HasAttendance reports whether any attendance record references the session.
func (r *SessionRepository) HasAttendance(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
SELECT 1 FROM attendance_records ar
JOIN enrollments e ON e.id = ar.enrollment_id
WHERE e.session_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, sessionID); err != nil {
		return false, fmt.Errorf("check session attendance: %w", err)
	}
	return exists, nil
}
