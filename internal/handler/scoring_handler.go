package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baraatakala/training-center-sub003/internal/models"
	"github.com/baraatakala/training-center-sub003/internal/service"
	appErrors "github.com/baraatakala/training-center-sub003/pkg/errors"
	"github.com/baraatakala/training-center-sub003/pkg/response"
)

// ScoringHandler exposes score reports and aggregation settings.
type ScoringHandler struct {
	scoring *service.ScoringService
}

// NewScoringHandler constructs ScoringHandler.
func NewScoringHandler(scoring *service.ScoringService) *ScoringHandler {
	return &ScoringHandler{scoring: scoring}
}

// Score godoc
// @Summary Weighted score for one enrollment
// @Tags Scoring
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/{id}/score [get]
func (h *ScoringHandler) Score(c *gin.Context) {
	report, err := h.scoring.Score(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// GetConfig godoc
// @Summary Current aggregation settings
// @Tags Scoring
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /scoring/config [get]
func (h *ScoringHandler) GetConfig(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	ownerID := claims.UserID
	if claims.Role == models.RoleAdmin && c.Query("owner") != "" {
		ownerID = c.Query("owner")
	}

	config, err := h.scoring.Config(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config, nil)
}

// UpdateConfig godoc
// @Summary Update aggregation settings
// @Tags Scoring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UpdateScoringConfigRequest true "Config payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scoring/config [put]
func (h *ScoringHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateScoringConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req.ActorID = claims.UserID
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	config, err := h.scoring.UpdateConfig(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config, nil)
}
