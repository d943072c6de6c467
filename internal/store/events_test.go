package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackdoglabs/analytics-platform/internal/cursor"
	"github.com/blackdoglabs/analytics-platform/internal/models"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed.UTC()
}

func input(eventType, userID string, at time.Time) models.EventInput {
	return models.EventInput{EventType: eventType, UserID: userID, Timestamp: &at}
}

func TestAppendAssignsRecordFields(t *testing.T) {
	st := NewEventStore()
	at := ts(t, "2025-12-15T09:00:00Z")

	rec := st.Append("org_a", input("page_view", "u001", at))

	require.NotEmpty(t, rec.EventID)
	require.Equal(t, "org_a", rec.TenantID)
	require.Equal(t, "u001", rec.UserID)
	require.Equal(t, "page_view", rec.EventType)
	require.NotNil(t, rec.Properties)
	require.True(t, at.Equal(rec.Timestamp))
}

func TestAppendDefaultsTimestampToNow(t *testing.T) {
	st := NewEventStore()
	before := time.Now().UTC()

	rec := st.Append("org_a", models.EventInput{EventType: "page_view", UserID: "u001"})

	require.False(t, rec.Timestamp.Before(before))
	require.False(t, rec.Timestamp.After(time.Now().UTC()))
}

func TestAppendBatchIncreasesCountExactly(t *testing.T) {
	for _, n := range []int{1, 7, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			st := NewEventStore()
			base := ts(t, "2025-01-01T00:00:00Z")

			batch := make([]models.EventInput, 0, n)
			for i := 0; i < n; i++ {
				batch = append(batch, input("page_view", "u001", base.Add(time.Duration(i)*time.Second)))
			}
			recs := st.AppendBatch("org_a", batch)
			require.Len(t, recs, n)

			got, hasMore := st.Query("org_a", Filter{}, nil, n+1)
			require.Len(t, got, n)
			require.False(t, hasMore)
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	st := NewEventStore()
	at := ts(t, "2025-12-15T09:00:00Z")

	st.Append("org_a", input("page_view", "u001", at))
	st.Append("org_a", input("button_click", "u002", at))

	got, hasMore := st.Query("org_b", Filter{}, nil, 100)
	require.Empty(t, got)
	require.False(t, hasMore)
	require.Empty(t, st.Range("org_b", at.Add(-time.Hour), at.Add(time.Hour)))

	// And the owning tenant still sees everything.
	got, _ = st.Query("org_a", Filter{}, nil, 100)
	require.Len(t, got, 2)
	for _, rec := range got {
		require.Equal(t, "org_a", rec.TenantID)
	}
}

func TestQueryFilters(t *testing.T) {
	st := NewEventStore()
	st.Append("org_a", input("page_view", "u001", ts(t, "2025-12-14T10:00:00Z")))
	st.Append("org_a", input("page_view", "u002", ts(t, "2025-12-15T10:00:00Z")))
	st.Append("org_a", input("button_click", "u001", ts(t, "2025-12-16T10:00:00Z")))

	start := ts(t, "2025-12-15T00:00:00Z")
	end := ts(t, "2025-12-15T23:59:59Z")

	tests := []struct {
		name      string
		filter    Filter
		wantUsers []string
	}{
		{"by user", Filter{UserID: "u001"}, []string{"u001", "u001"}},
		{"by event type", Filter{EventType: "page_view"}, []string{"u002", "u001"}},
		{"by user and type", Filter{UserID: "u001", EventType: "page_view"}, []string{"u001"}},
		{"by date range", Filter{Start: &start, End: &end}, []string{"u002"}},
		{"no match", Filter{UserID: "u003"}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := st.Query("org_a", tc.filter, nil, 100)
			var users []string
			for _, rec := range got {
				users = append(users, rec.UserID)
			}
			require.Equal(t, tc.wantUsers, users)
		})
	}
}

func TestQueryDateBoundsAreInclusive(t *testing.T) {
	st := NewEventStore()
	at := ts(t, "2025-12-15T10:00:00Z")
	st.Append("org_a", input("page_view", "u001", at))

	got, _ := st.Query("org_a", Filter{Start: &at, End: &at}, nil, 10)
	require.Len(t, got, 1)
}

func TestQueryOrdersNewestFirstWithStableTieBreak(t *testing.T) {
	st := NewEventStore()
	same := ts(t, "2025-12-15T10:00:00Z")
	st.Append("org_a", input("page_view", "u001", ts(t, "2025-12-15T09:00:00Z")))
	st.Append("org_a", input("page_view", "u002", same))
	st.Append("org_a", input("page_view", "u003", same))

	first, _ := st.Query("org_a", Filter{}, nil, 10)
	require.Len(t, first, 3)
	require.False(t, first[0].Timestamp.Before(first[1].Timestamp))
	require.False(t, first[1].Timestamp.Before(first[2].Timestamp))
	// Equal timestamps break ties by event ID descending.
	require.Greater(t, first[0].EventID, first[1].EventID)

	// Ordering is stable across repeated scans.
	second, _ := st.Query("org_a", Filter{}, nil, 10)
	require.Equal(t, first, second)
}

func TestQueryPaginationIsExhaustiveAndNonOverlapping(t *testing.T) {
	st := NewEventStore()
	base := ts(t, "2025-01-01T00:00:00Z")

	// Ascending timestamps so store-assigned IDs and timestamps agree.
	batch := make([]models.EventInput, 0, 10)
	for hour := 0; hour < 10; hour++ {
		batch = append(batch, input("page_view", fmt.Sprintf("u%03d", hour), base.Add(time.Duration(hour)*time.Hour)))
	}
	st.AppendBatch("org_a", batch)

	full, hasMore := st.Query("org_a", Filter{}, nil, 100)
	require.Len(t, full, 10)
	require.False(t, hasMore)

	seen := map[string]bool{}
	var after *cursor.Position
	pages := 0
	for {
		page, more := st.Query("org_a", Filter{}, after, 3)
		for _, rec := range page {
			require.False(t, seen[rec.EventID], "event %s served twice", rec.EventID)
			seen[rec.EventID] = true
		}
		if !more {
			break
		}
		require.NotEmpty(t, page)
		last := page[len(page)-1]
		after = &cursor.Position{EventID: last.EventID, Timestamp: last.Timestamp}
		pages++
		require.Less(t, pages, 20, "pagination did not terminate")
	}

	require.Len(t, seen, 10)
	for _, rec := range full {
		require.True(t, seen[rec.EventID])
	}
}

func TestQueryFilterHonorsCursorAndLimit(t *testing.T) {
	st := NewEventStore()
	base := ts(t, "2025-01-01T00:00:00Z")

	batch := make([]models.EventInput, 0, 8)
	for i := 0; i < 8; i++ {
		eventType := "page_view"
		if i%2 == 1 {
			eventType = "button_click"
		}
		batch = append(batch, input(eventType, "u001", base.Add(time.Duration(i)*time.Hour)))
	}
	st.AppendBatch("org_a", batch)

	var collected []models.EventRecord
	var after *cursor.Position
	for {
		page, more := st.Query("org_a", Filter{EventType: "page_view"}, after, 3)
		require.LessOrEqual(t, len(page), 3)
		for _, rec := range page {
			require.Equal(t, "page_view", rec.EventType)
		}
		collected = append(collected, page...)
		if !more {
			break
		}
		last := page[len(page)-1]
		after = &cursor.Position{EventID: last.EventID, Timestamp: last.Timestamp}
	}
	require.Len(t, collected, 4)
}

func TestRangeInclusiveBounds(t *testing.T) {
	st := NewEventStore()
	st.Append("org_a", input("page_view", "u001", ts(t, "2025-12-14T23:59:59Z")))
	st.Append("org_a", input("page_view", "u002", ts(t, "2025-12-15T00:00:00Z")))
	st.Append("org_a", input("page_view", "u003", ts(t, "2025-12-15T23:59:59Z")))
	st.Append("org_a", input("page_view", "u004", ts(t, "2025-12-16T00:00:00Z")))

	got := st.Range("org_a", ts(t, "2025-12-15T00:00:00Z"), ts(t, "2025-12-15T23:59:59Z"))
	require.Len(t, got, 2)
	require.Equal(t, "u002", got[0].UserID)
	require.Equal(t, "u003", got[1].UserID)
}

func TestConcurrentAppendsAndQueries(t *testing.T) {
	st := NewEventStore()
	const (
		tenants  = 4
		writers  = 5
		perBatch = 10
	)

	var wg sync.WaitGroup
	for tenant := 0; tenant < tenants; tenant++ {
		tenantID := fmt.Sprintf("org_%d", tenant)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				batch := make([]models.EventInput, perBatch)
				for i := range batch {
					batch[i] = models.EventInput{EventType: "page_view", UserID: "u001"}
				}
				st.AppendBatch(tenantID, batch)
			}()
		}
		// Readers run alongside writers; a scan must only ever observe
		// whole batches.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				got, _ := st.Query(tenantID, Filter{}, nil, writers*perBatch)
				assert.Zero(t, len(got)%perBatch, "observed a partial batch")
			}
		}()
	}
	wg.Wait()

	for tenant := 0; tenant < tenants; tenant++ {
		got, _ := st.Query(fmt.Sprintf("org_%d", tenant), Filter{}, nil, writers*perBatch+1)
		require.Len(t, got, writers*perBatch)
	}
}
