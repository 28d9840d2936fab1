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

// EnrollmentRepository handles persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, session_id, start_date, end_date, status, can_host, host_date, created_at, updated_at`

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	now := time.Now().UTC()
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	query := `INSERT INTO enrollments (id, student_id, session_id, start_date, end_date, status, can_host, host_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.SessionID, enrollment.StartDate, enrollment.EndDate,
		enrollment.Status, enrollment.CanHost, enrollment.HostDate, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID loads one enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1`, enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindActive returns the active enrollment binding a student to a session.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentID, sessionID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND session_id = $2 AND status = $3`, enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, sessionID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments matching the filter along with the total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN sessions s ON s.id = e.session_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SessionID != "" {
		where = append(where, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CanHost != nil {
		where = append(where, fmt.Sprintf("e.can_host = $%d", len(args)+1))
		args = append(args, *filter.CanHost)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"start_date": "e.start_date",
		"status":     "e.status",
		"created_at": "e.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "e.created_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.session_id, e.start_date, e.end_date, e.status, e.can_host, e.host_date, e.created_at, e.updated_at,
        u.full_name AS student_name, s.name AS session_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return rows, total, nil
}

// UpdateStatus performs a soft lifecycle transition. Dropping or completing
// an enrollment clears the host flag as a side effect.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	query := `UPDATE enrollments
SET status = $2,
    can_host = CASE WHEN $2 = 'ACTIVE' THEN can_host ELSE false END,
    end_date = CASE WHEN $2 IN ('COMPLETED', 'DROPPED') THEN COALESCE(end_date, $3) ELSE end_date END,
    updated_at = $3
WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("enrollment %s not found", id)
	}
	return nil
}

// SetHost updates the host flag and rotation date.
func (r *EnrollmentRepository) SetHost(ctx context.Context, id string, canHost bool, hostDate *time.Time) error {
	query := `UPDATE enrollments SET can_host = $2, host_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, canHost, hostDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("set enrollment host: %w", err)
	}
	return nil
}

// HostOn returns the enrollment hosting the session on the given date.
func (r *EnrollmentRepository) HostOn(ctx context.Context, sessionID string, date time.Time) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := fmt.Sprintf(`SELECT %s FROM enrollments
WHERE session_id = $1 AND can_host = true AND host_date = $2 AND status = $3`, enrollmentColumns)
	if err := r.db.GetContext(ctx, &enrollment, query, sessionID, date, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
