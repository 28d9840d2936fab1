package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baraatakala/training-center-sub003/internal/models"
	"github.com/baraatakala/training-center-sub003/internal/service"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/response"
)

// TokenHandler exposes check-in window management for staff.
type TokenHandler struct {
	tokens *service.TokenService
}

// NewTokenHandler constructs TokenHandler.
func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type openWindowPayload struct {
	SessionID  string `json:"session_id"`
	Date       string `json:"date"`
	Kind       string `json:"kind"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

// Open godoc
// @Summary Open a check-in window
// @Tags CheckInWindows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body openWindowPayload true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /check-in/windows [post]
func (h *TokenHandler) Open(c *gin.Context) {
	var payload openWindowPayload
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

	req := service.OpenWindowRequest{
		SessionID: payload.SessionID,
		Date:      date,
		Kind:      models.TokenKind(payload.Kind),
		TTL:       time.Duration(payload.TTLMinutes) * time.Minute,
		ActorID:   claims.UserID,
		ActorRole: claims.Role,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	res, err := h.tokens.OpenWindow(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Close godoc
// @Summary Close a check-in window
// @Tags CheckInWindows
// @Produce json
// @Security BearerAuth
// @Param token path string true "Token value"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /check-in/windows/{token} [delete]
func (h *TokenHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, err := h.tokens.CloseWindow(c.Request.Context(), c.Param("token"), claims.UserID, c.ClientIP(), c.GetHeader("User-Agent"), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}

// Active godoc
// @Summary Get the open window for a session date
// @Tags CheckInWindows
// @Produce json
// @Security BearerAuth
// @Param sessionId query string true "Session ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /check-in/windows/active [get]
func (h *TokenHandler) Active(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	token, err := h.tokens.ActiveWindow(c.Request.Context(), c.Query("sessionId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}
