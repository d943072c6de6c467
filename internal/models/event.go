package models

import (
	"errors"
	"time"
)

// Batch size bounds for POST /events. The HTTP layer rejects out-of-range
// batches before the store is touched; the store documents the same range so
// both layers agree.
const (
	MinBatchSize = 1
	MaxBatchSize = 100
)

// EventInput is a single event as submitted by a client. The store assigns
// event_id and org_id; timestamp defaults to the server clock when omitted.
type EventInput struct {
	EventType  string                 `json:"event_type"`
	UserID     string                 `json:"user_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  *time.Time             `json:"timestamp,omitempty"`
}

// Validate checks the required envelope fields.
func (e EventInput) Validate() error {
	if e.EventType == "" {
		return errors.New("event_type required")
	}
	if e.UserID == "" {
		return errors.New("user_id required")
	}
	return nil
}

// EventRecord is the canonical stored event. Immutable once created; every
// record belongs to exactly one tenant (org_id on the wire).
type EventRecord struct {
	EventID    string                 `json:"event_id"`
	TenantID   string                 `json:"org_id"`
	UserID     string                 `json:"user_id"`
	EventType  string                 `json:"event_type"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  time.Time              `json:"timestamp"`
}

// IngestRequest is the POST /events payload.
type IngestRequest struct {
	Events []EventInput `json:"events"`
}

// IngestResponse is returned by POST /events.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	OrgID    string `json:"org_id"`
}

// QueryResponse is returned by GET /events. Cursor is null when no further
// page exists.
type QueryResponse struct {
	Data    []EventRecord `json:"data"`
	Cursor  *string       `json:"cursor"`
	HasMore bool          `json:"has_more"`
}

// DailyMetrics holds the metric values for one UTC calendar day.
type DailyMetrics struct {
	Date    string             `json:"date"`
	Metrics map[string]float64 `json:"metrics"`
}

// MetricsSummaryResponse is returned by GET /metrics/summary.
type MetricsSummaryResponse struct {
	Data   []DailyMetrics     `json:"data"`
	Totals map[string]float64 `json:"totals"`
}

// ErrorResponse is the error body for all non-2xx responses.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// Error type identifiers used in ErrorResponse.ErrorType.
const (
	ErrTypeValidation   = "validation_error"
	ErrTypeInvalidJSON  = "invalid_json"
	ErrTypeConflict     = "conflict"
	ErrTypeUnauthorized = "unauthorized"
)
