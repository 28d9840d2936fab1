package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baraatakala/training-center-sub003/internal/evaluation"
	"github.com/baraatakala/training-center-sub003/internal/models"
	"github.com/baraatakala/training-center-sub003/internal/service"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/response"
)

// AttendanceHandler exposes staff attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

type markAttendancePayload struct {
	EnrollmentID string  `json:"enrollment_id"`
	Date         string  `json:"date"`
	Status       string  `json:"status"`
	MinutesLate  *int    `json:"minutes_late,omitempty"`
	ExcuseReason *string `json:"excuse_reason,omitempty"`
}

// Mark godoc
// @Summary Record or correct an attendance outcome
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body markAttendancePayload true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var payload markAttendancePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	record, err := h.attendance.Mark(c.Request.Context(), service.MarkAttendanceRequest{
		EnrollmentID: payload.EnrollmentID,
		Date:         date,
		Status:       evaluation.Status(strings.ToUpper(payload.Status)),
		MinutesLate:  payload.MinutesLate,
		ExcuseReason: payload.ExcuseReason,
		ActorID:      claims.UserID,
		IP:           c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param sessionId query string false "Filter by session"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Filter by status"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var filter models.AttendanceFilter
	filter.SessionID = c.Query("sessionId")
	filter.EnrollmentID = c.Query("enrollmentId")
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := evaluation.Status(raw)
		filter.Status = &status
	}
	if from, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		filter.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		filter.DateTo = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	records, total, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// History godoc
// @Summary Attendance history for one enrollment
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param from query string false "Date from (YYYY-MM-DD)"
// @Param to query string false "Date to (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	var from, to *time.Time
	if parsed, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		from = &parsed
	}
	if parsed, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		to = &parsed
	}

	rows, err := h.attendance.History(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Delete godoc
// @Summary Delete an attendance record
// @Description Admin-only removal; the deleted values land in the audit log
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param enrollmentId query string true "Enrollment ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 204
// @Router /attendance [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	if err := h.attendance.Delete(c.Request.Context(), c.Query("enrollmentId"), date, claims.UserID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
