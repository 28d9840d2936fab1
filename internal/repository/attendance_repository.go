package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/baraatakala/training-center-sub003/internal/models"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a Postgres unique
// constraint violation. Concurrent check-ins for the same (enrollment,
// date) race to this constraint; the loser sees 23505.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationCode
	}
	return false
}

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, enrollment_id, date, status, minutes_late, late_severity, check_in_at, latitude, longitude, gps_accuracy, excuse_reason, host_address, created_at, updated_at`

// Insert creates a record and fails on a duplicate (enrollment, date).
// Used by student check-ins, where the uniqueness constraint is the
// concurrency guard; callers translate 23505 via IsUniqueViolation.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING %s`, attendanceColumns, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.EnrollmentID, record.Date, record.Status, record.MinutesLate, record.LateSeverity,
		record.CheckInAt, record.Latitude, record.Longitude, record.GPSAccuracy, record.ExcuseReason,
		record.HostAddress, record.CreatedAt, record.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, nil
}

// Upsert inserts or overwrites the record for (enrollment, date). Used by
// staff marking and re-marking, which is an intentional overwrite.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (enrollment_id, date)
DO UPDATE SET status = EXCLUDED.status, minutes_late = EXCLUDED.minutes_late, late_severity = EXCLUDED.late_severity,
    check_in_at = EXCLUDED.check_in_at, excuse_reason = EXCLUDED.excuse_reason, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.EnrollmentID, record.Date, record.Status, record.MinutesLate, record.LateSeverity,
		record.CheckInAt, record.Latitude, record.Longitude, record.GPSAccuracy, record.ExcuseReason,
		record.HostAddress, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendance_records ar
JOIN enrollments e ON e.id = ar.enrollment_id
JOIN users u ON u.id = e.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SessionID != "" {
		where = append(where, fmt.Sprintf("e.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.EnrollmentID != "" {
		where = append(where, fmt.Sprintf("ar.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ar.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "ar.date",
		"status":     "ar.status",
		"created_at": "ar.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "ar.date"
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

	query := fmt.Sprintf(`SELECT ar.id, ar.enrollment_id, ar.date, ar.status, ar.minutes_late, ar.late_severity,
        ar.check_in_at, ar.latitude, ar.longitude, ar.gps_accuracy, ar.excuse_reason, ar.host_address,
        ar.created_at, ar.updated_at,
        e.student_id, u.full_name AS student_name, e.session_id
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// FindByEnrollmentDate loads the record for one (enrollment, date).
func (r *AttendanceRepository) FindByEnrollmentDate(ctx context.Context, enrollmentID string, date time.Time) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE enrollment_id = $1 AND date = $2`, attendanceColumns)
	if err := r.db.GetContext(ctx, &record, query, enrollmentID, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByEnrollment returns every record for one enrollment ordered by date.
func (r *AttendanceRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AttendanceRecord, error) {
	var rows []models.AttendanceRecord
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE enrollment_id = $1 ORDER BY date ASC`, attendanceColumns)
	if err := r.db.SelectContext(ctx, &rows, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list attendance by enrollment: %w", err)
	}
	return rows, nil
}

// History returns date/status rows for one enrollment in a range.
func (r *AttendanceRepository) History(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error) {
	where := []string{"enrollment_id = $1"}
	args := []interface{}{enrollmentID}
	if from != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT date, status, minutes_late, excuse_reason FROM attendance_records WHERE %s ORDER BY date ASC`,
		strings.Join(where, " AND "))
	var rows []models.AttendanceHistoryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("attendance history: %w", err)
	}
	return rows, nil
}

// Delete removes one attendance record. Reachable only through the audited
// delete flow in the service layer.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("attendance record %s not found", id)
	}
	return nil
}
