package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baraatakala/training-center-sub003/internal/service"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/response"
)

// CheckInHandler exposes the student self check-in endpoints.
type CheckInHandler struct {
	checkins *service.CheckInService
	tokens   *service.TokenService
}

// NewCheckInHandler constructs CheckInHandler.
func NewCheckInHandler(checkins *service.CheckInService, tokens *service.TokenService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins, tokens: tokens}
}

// CheckIn godoc
// @Summary Check in with a token
// @Description Validate the token, apply proximity rules and record attendance
// @Tags CheckIn
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /check-in [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req.StudentID = claims.UserID

	record, err := h.checkins.CheckIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Validate godoc
// @Summary Validate a check-in token
// @Description Read-only token state lookup; never consumes the token
// @Tags CheckIn
// @Produce json
// @Security BearerAuth
// @Param token query string true "Token value"
// @Param sessionId query string false "Expected session"
// @Success 200 {object} response.Envelope
// @Router /check-in/validate [get]
func (h *CheckInHandler) Validate(c *gin.Context) {
	tokenValue := c.Query("token")
	if tokenValue == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	result, err := h.checkins.ValidateToken(c.Request.Context(), tokenValue, c.Query("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ResolveShareLink godoc
// @Summary Resolve a signed share link
// @Tags CheckIn
// @Produce json
// @Param link query string true "Signed share link"
// @Success 200 {object} response.Envelope
// @Router /check-in/link [get]
func (h *CheckInHandler) ResolveShareLink(c *gin.Context) {
	link := c.Query("link")
	if link == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "link is required"))
		return
	}

	token, err := h.tokens.ResolveShareLink(c.Request.Context(), link)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}
