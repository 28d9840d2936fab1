package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baraatakala/training-center-sub003/internal/service"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/export"
	"github.com/baraatakala/training-center-sub003/pkg/response"
)

// ExportHandler streams attendance exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// SessionReport godoc
// @Summary Export a session's attendance sheet
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /sessions/{id}/export [get]
func (h *ExportHandler) SessionReport(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	format := export.Format(c.DefaultQuery("format", "csv"))

	file, err := h.exports.SessionReport(c.Request.Context(), c.Param("id"), date, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, file)
}

// EnrollmentHistory godoc
// @Summary Export an enrollment's attendance history
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /enrollments/{id}/export [get]
func (h *ExportHandler) EnrollmentHistory(c *gin.Context) {
	var from, to *time.Time
	if parsed, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		from = &parsed
	}
	if parsed, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		to = &parsed
	}
	format := export.Format(c.DefaultQuery("format", "csv"))

	file, err := h.exports.EnrollmentHistory(c.Request.Context(), c.Param("id"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeExport(c, file)
}

func writeExport(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(200, file.ContentType, file.Content)
}
