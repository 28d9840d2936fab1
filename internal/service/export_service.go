package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/baraatakala/training-center-sub003/internal/models"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/export"
)

type exportAttendanceService interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	History(ctx context.Context, enrollmentID string, from, to *time.Time) ([]models.AttendanceHistoryRow, error)
}

type exportSessionService interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders attendance data as CSV or PDF downloads.
type ExportService struct {
	attendance exportAttendanceService
	sessions   exportSessionService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(attendance exportAttendanceService, sessions exportSessionService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		sessions:   sessions,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// SessionReport exports the attendance sheet for one session date.
func (s *ExportService) SessionReport(ctx context.Context, sessionID string, date time.Time, format export.Format) (*ExportFile, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	from := date
	to := date
	records, _, err := s.attendance.List(ctx, models.AttendanceFilter{
		SessionID: sessionID,
		DateFrom:  &from,
		DateTo:    &to,
		Page:      1,
		PageSize:  200,
	})
	if err != nil {
		return nil, err
	}

	day := date.Format("2006-01-02")
	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s attendance %s", session.Name, day),
		Headers: []string{"Student", "Status", "Minutes Late", "Checked In", "Excuse"},
	}
	for _, record := range records {
		row := map[string]string{
			"Student": record.StudentName,
			"Status":  string(record.Status),
		}
		if record.MinutesLate != nil {
			row["Minutes Late"] = strconv.Itoa(*record.MinutesLate)
		}
		if record.CheckInAt != nil {
			row["Checked In"] = record.CheckInAt.Format("15:04")
		}
		if record.ExcuseReason != nil {
			row["Excuse"] = *record.ExcuseReason
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	return s.render(dataset, fmt.Sprintf("attendance-%s-%s", session.ID, day), format)
}

// EnrollmentHistory exports the per-date trail for one enrollment.
func (s *ExportService) EnrollmentHistory(ctx context.Context, enrollmentID string, from, to *time.Time, format export.Format) (*ExportFile, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	rows, err := s.attendance.History(ctx, enrollmentID, from, to)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   "Attendance history",
		Headers: []string{"Date", "Status", "Minutes Late", "Excuse"},
	}
	for _, entry := range rows {
		row := map[string]string{
			"Date":   entry.Date.Format("2006-01-02"),
			"Status": string(entry.Status),
		}
		if entry.MinutesLate != nil {
			row["Minutes Late"] = strconv.Itoa(*entry.MinutesLate)
		}
		if entry.ExcuseReason != nil {
			row["Excuse"] = *entry.ExcuseReason
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	return s.render(dataset, fmt.Sprintf("history-%s", enrollmentID), format)
}

func (s *ExportService) render(dataset export.Dataset, base string, format export.Format) (*ExportFile, error) {
	var content []byte
	var err error
	switch format {
	case export.FormatPDF:
		content, err = s.pdf.Render(dataset)
	default:
		content, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("%s.%s", base, string(format)),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}
