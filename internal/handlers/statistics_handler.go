package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
)

const (
	defaultViolationLimit = 10
	maxViolationLimit     = 1000
)

type StatisticsHandler struct {
	scope      chatScope
	store      *repository.Store
	aggregator *moderation.Aggregator
}

func NewStatisticsHandler(store *repository.Store, aggregator *moderation.Aggregator, scope chatScope) *StatisticsHandler {
	return &StatisticsHandler{scope: scope, store: store, aggregator: aggregator}
}

// GetStatistics returns the top users, top words and worst message, for one day or all time
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	day, ok := parseDay(c)
	if !ok {
		return
	}

	stats, err := h.aggregator.Aggregate(ctx, chatID, day)
	if err != nil {
		h.scope.storeError(c, "Failed to compute statistics", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetViolations returns the latest violation log entries, oldest first
func (h *StatisticsHandler) GetViolations(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	var req models.GetViolationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	day, ok := parseDay(c)
	if !ok {
		return
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultViolationLimit
	case limit > maxViolationLimit:
		limit = maxViolationLimit
	}

	logs, err := h.store.ViolationLogs(ctx, chatID, day, limit)
	if err != nil {
		h.scope.storeError(c, "Failed to get violations", err)
		return
	}
	if logs == nil {
		logs = []models.ViolationLog{}
	}

	c.JSON(http.StatusOK, logs)
}
