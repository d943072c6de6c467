// Package aggregation derives daily metric summaries from raw event records.
// Summaries are recomputed per query and never persisted, so there is no
// staleness to manage, only recomputation cost.
package aggregation

import (
	"errors"
	"time"

	"github.com/blackdoglabs/analytics-platform/internal/models"
)

// ErrInvalidRange is returned when the start date falls after the end date.
var ErrInvalidRange = errors.New("start date must not be after end date")

// MetricUniqueUsers is the derived distinct-user metric emitted for every day
// that has at least one counted event.
const MetricUniqueUsers = "unique_users"

const dateLayout = "2006-01-02"

// metricNames maps well-known event types to their metric names. Unknown
// event types fall back to "<event_type>_count".
var metricNames = map[string]string{
	"page_view":    "page_views",
	"button_click": "button_clicks",
	"feature_used": "feature_uses",
	"api_call":     "api_calls",
}

// MetricName returns the metric name an event type is counted under.
func MetricName(eventType string) string {
	if name, ok := metricNames[eventType]; ok {
		return name
	}
	return eventType + "_count"
}

// Summary is a per-day breakdown plus totals over the whole range.
type Summary struct {
	Days   []models.DailyMetrics
	Totals map[string]float64
}

type dayBucket struct {
	counts map[string]float64
	users  map[string]struct{}
}

// Summarize buckets events by UTC calendar day over [start, end] inclusive.
// Each event increments its mapped metric by one for its day and for the
// totals. When a metric-name filter is given, events whose mapped name is not
// in the filter are dropped before counting, which also removes them from the
// unique-user sets.
//
// The total unique_users is the cardinality of the union of the daily user
// sets, not the sum of the daily counts: a user active on two days counts
// once in the totals.
//
// Every day in the range is seeded so gaps are visible internally, but only
// days that end up with at least one non-zero metric appear in the result,
// in ascending date order.
func Summarize(events []models.EventRecord, start, end time.Time, metricFilter []string) (Summary, error) {
	startDay := start.UTC().Truncate(24 * time.Hour)
	endDay := end.UTC().Truncate(24 * time.Hour)
	if startDay.After(endDay) {
		return Summary{}, ErrInvalidRange
	}

	var included map[string]bool
	if len(metricFilter) > 0 {
		included = make(map[string]bool, len(metricFilter))
		for _, name := range metricFilter {
			included[name] = true
		}
	}

	days := map[string]*dayBucket{}
	var order []string
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		days[key] = &dayBucket{counts: map[string]float64{}, users: map[string]struct{}{}}
		order = append(order, key)
	}

	totals := map[string]float64{}
	allUsers := map[string]struct{}{}

	for _, ev := range events {
		bucket, ok := days[ev.Timestamp.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		name := MetricName(ev.EventType)
		if included != nil && !included[name] {
			continue
		}
		bucket.counts[name]++
		totals[name]++
		bucket.users[ev.UserID] = struct{}{}
		allUsers[ev.UserID] = struct{}{}
	}

	out := Summary{Totals: totals}
	for _, key := range order {
		bucket := days[key]
		if len(bucket.users) > 0 {
			bucket.counts[MetricUniqueUsers] = float64(len(bucket.users))
		}
		if len(bucket.counts) == 0 {
			continue
		}
		out.Days = append(out.Days, models.DailyMetrics{Date: key, Metrics: bucket.counts})
	}
	if len(allUsers) > 0 {
		totals[MetricUniqueUsers] = float64(len(allUsers))
	}
	return out, nil
}
