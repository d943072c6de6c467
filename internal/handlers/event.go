package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blackdoglabs/analytics-platform/internal/auth"
	"github.com/blackdoglabs/analytics-platform/internal/cursor"
	"github.com/blackdoglabs/analytics-platform/internal/metrics"
	"github.com/blackdoglabs/analytics-platform/internal/models"
	"github.com/blackdoglabs/analytics-platform/internal/store"
)

const dateLayout = "2006-01-02"

// parseISODate parses an ISO 8601 value, either a full RFC3339 timestamp
// (trailing Z = UTC) or a bare date. Returns the parsed time normalized to
// UTC and whether the value was date-only.
func parseISODate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%q is not an ISO 8601 date", s)
}

// endOfDay widens a date-only bound to the last instant of that UTC day so
// the inclusive end bound covers the whole day.
func endOfDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// RegisterEventRoutes registers the ingestion and query endpoints.
//
// POST /events
// - Requires Bearer token (tenant context)
// - Batch of 1-100 events; optional X-Idempotency-Key header
// - Duplicate key for the same tenant -> 409; the original request is not
//   replayed and the second batch is not stored
//
// GET /events
// - Optional user_id / event_type / start_date / end_date filters
// - Opaque cursor pagination; malformed cursors are ignored, not rejected
func RegisterEventRoutes(r gin.IRoutes, st *store.EventStore, ledger *store.IdempotencyLedger, logger *zap.Logger) {
	r.POST("/events", func(c *gin.Context) {
		id := auth.FromContext(c)
		if id.TenantID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				ErrorType: models.ErrTypeUnauthorized,
				Message:   "unauthorized",
			})
			return
		}

		var req models.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				ErrorType: models.ErrTypeInvalidJSON,
				Message:   "invalid JSON payload",
			})
			return
		}

		// A duplicate key is reported before validation runs, matching the
		// upstream contract. The key itself is only consumed after
		// validation passes, so a rejected batch does not burn its key.
		key := c.GetHeader("X-Idempotency-Key")
		if key != "" && ledger.Seen(id.TenantID, key) {
			metrics.IngestConflicts.Inc()
			c.JSON(http.StatusConflict, models.ErrorResponse{
				ErrorType: models.ErrTypeConflict,
				Message:   "idempotency key already processed",
			})
			return
		}

		if len(req.Events) < models.MinBatchSize || len(req.Events) > models.MaxBatchSize {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				ErrorType: models.ErrTypeValidation,
				Message:   fmt.Sprintf("batch must contain %d-%d events", models.MinBatchSize, models.MaxBatchSize),
			})
			return
		}
		for i, ev := range req.Events {
			if err := ev.Validate(); err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					ErrorType: models.ErrTypeValidation,
					Message:   "invalid event in batch",
					Details:   map[string]interface{}{"index": i, "error": err.Error()},
				})
				return
			}
		}

		// Atomic check-then-set: of two racing requests with the same key,
		// exactly one reserves it.
		if key != "" && !ledger.Reserve(id.TenantID, key) {
			metrics.IngestConflicts.Inc()
			c.JSON(http.StatusConflict, models.ErrorResponse{
				ErrorType: models.ErrTypeConflict,
				Message:   "idempotency key already processed",
			})
			return
		}

		records := st.AppendBatch(id.TenantID, req.Events)
		if key != "" {
			ledger.Record(id.TenantID, key, store.IngestResult{
				Accepted: len(records),
				TenantID: id.TenantID,
			})
		}

		metrics.EventsIngested.WithLabelValues(id.TenantID).Add(float64(len(records)))
		logger.Info("events ingested",
			zap.String("tenant_id", id.TenantID),
			zap.String("user_id", id.Subject),
			zap.Int("accepted", len(records)))

		c.JSON(http.StatusCreated, models.IngestResponse{
			Accepted: len(records),
			OrgID:    id.TenantID,
		})
	})

	r.GET("/events", func(c *gin.Context) {
		id := auth.FromContext(c)
		if id.TenantID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				ErrorType: models.ErrTypeUnauthorized,
				Message:   "unauthorized",
			})
			return
		}

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					ErrorType: models.ErrTypeValidation,
					Message:   "limit must be an integer in [1,100]",
				})
				return
			}
			limit = n
		}

		f := store.Filter{
			UserID:    c.Query("user_id"),
			EventType: c.Query("event_type"),
		}
		if raw := c.Query("start_date"); raw != "" {
			t, _, err := parseISODate(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					ErrorType: models.ErrTypeValidation,
					Message:   "start_date must be ISO 8601",
				})
				return
			}
			f.Start = &t
		}
		if raw := c.Query("end_date"); raw != "" {
			t, dateOnly, err := parseISODate(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					ErrorType: models.ErrTypeValidation,
					Message:   "end_date must be ISO 8601",
				})
				return
			}
			if dateOnly {
				t = endOfDay(t)
			}
			f.End = &t
		}

		// Malformed cursors degrade to an unbounded scan rather than an
		// error; clients holding stale tokens just start over.
		var after *cursor.Position
		if raw := c.Query("cursor"); raw != "" {
			pos, err := cursor.Decode(raw)
			if err != nil {
				logger.Debug("ignoring malformed cursor",
					zap.String("tenant_id", id.TenantID),
					zap.String("cursor", raw))
			} else {
				after = &pos
			}
		}

		records, hasMore := st.Query(id.TenantID, f, after, limit)
		if records == nil {
			records = []models.EventRecord{}
		}

		var next *string
		if hasMore && len(records) > 0 {
			last := records[len(records)-1]
			token := cursor.Encode(cursor.Position{EventID: last.EventID, Timestamp: last.Timestamp})
			next = &token
		}

		metrics.Queries.WithLabelValues("events").Inc()
		c.JSON(http.StatusOK, models.QueryResponse{
			Data:    records,
			Cursor:  next,
			HasMore: hasMore,
		})
	})
}
