package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackdoglabs/analytics-platform/internal/aggregation"
	"github.com/blackdoglabs/analytics-platform/internal/auth"
	"github.com/blackdoglabs/analytics-platform/internal/metrics"
	"github.com/blackdoglabs/analytics-platform/internal/models"
	"github.com/blackdoglabs/analytics-platform/internal/store"
)

// RegisterMetricRoutes registers the serving-path endpoint.
//
// GET /metrics/summary?start_date=...&end_date=...&metrics=...
// - Requires Bearer token (tenant context)
// - Returns a per-day breakdown (non-empty days only) plus range totals
func RegisterMetricRoutes(r gin.IRoutes, st *store.EventStore, logger *zap.Logger) {
	r.GET("/metrics/summary", func(c *gin.Context) {
		id := auth.FromContext(c)
		if id.TenantID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				ErrorType: models.ErrTypeUnauthorized,
				Message:   "unauthorized",
			})
			return
		}

		startRaw := c.Query("start_date")
		endRaw := c.Query("end_date")
		if startRaw == "" || endRaw == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				ErrorType: models.ErrTypeValidation,
				Message:   "start_date and end_date are required",
			})
			return
		}

		start, _, err := parseISODate(startRaw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				ErrorType: models.ErrTypeValidation,
				Message:   "start_date must be ISO 8601",
			})
			return
		}
		end, _, err := parseISODate(endRaw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				ErrorType: models.ErrTypeValidation,
				Message:   "end_date must be ISO 8601",
			})
			return
		}

		// Accepts both ?metrics=a&metrics=b and ?metrics=a,b.
		var filter []string
		for _, v := range c.QueryArray("metrics") {
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					filter = append(filter, name)
				}
			}
		}

		events := st.Range(id.TenantID, start.Truncate(24*time.Hour), endOfDay(end.Truncate(24*time.Hour)))
		summary, err := aggregation.Summarize(events, start, end, filter)
		if err != nil {
			if errors.Is(err, aggregation.ErrInvalidRange) {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					ErrorType: models.ErrTypeValidation,
					Message:   err.Error(),
				})
				return
			}
			logger.Error("metrics summary failed",
				zap.String("tenant_id", id.TenantID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				ErrorType: "internal_error",
				Message:   "failed to compute metrics summary",
			})
			return
		}

		days := summary.Days
		if days == nil {
			days = []models.DailyMetrics{}
		}

		metrics.Queries.WithLabelValues("metrics_summary").Inc()
		c.JSON(http.StatusOK, models.MetricsSummaryResponse{
			Data:   days,
			Totals: summary.Totals,
		})
	})
}
