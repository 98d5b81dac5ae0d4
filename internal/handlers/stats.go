package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raquelitre/Encuesta/internal/middleware"
	"github.com/raquelitre/Encuesta/internal/models"
	"github.com/raquelitre/Encuesta/internal/services"
)

// PercentView is the scalar, histogram and action view of the statistics
type PercentView struct {
	Total       int64                `json:"total"`
	Min         int                  `json:"min"`
	Max         int                  `json:"max"`
	Avg         float64              `json:"avg"`
	Buckets     []models.BucketCount `json:"buckets"`
	Actions     models.ActionCounts  `json:"actions"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// TokenResponse carries a stats bearer token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StatsHandler serves the protected statistics views
type StatsHandler struct {
	statsService *services.StatsService
	gate         *services.Gate
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *services.StatsService, gate *services.Gate) *StatsHandler {
	return &StatsHandler{statsService: statsService, gate: gate}
}

// Percent returns totals, the percent histogram and action counts
func (h *StatsHandler) Percent(c *gin.Context) {
	summary, err := h.statsService.Summarize(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STATS_FAILED"})
		return
	}

	c.JSON(http.StatusOK, PercentView{
		Total:       summary.Total,
		Min:         summary.Min,
		Max:         summary.Max,
		Avg:         summary.Avg,
		Buckets:     summary.Buckets,
		Actions:     summary.Actions,
		GeneratedAt: summary.GeneratedAt,
	})
}

// Items returns the vote count of every survey item
func (h *StatsHandler) Items(c *gin.Context) {
	summary, err := h.statsService.Summarize(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STATS_FAILED"})
		return
	}

	c.JSON(http.StatusOK, summary.Options)
}

// Token issues a short-lived bearer token for the stats views
func (h *StatsHandler) Token(c *gin.Context) {
	token, expiresAt, err := h.gate.IssueToken(middleware.GetStatsUser(c))
	if err != nil {
		if errors.Is(err, services.ErrTokensDisabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": "TOKENS_DISABLED"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SERVER_ERROR"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt})
}
