package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/webpulse/webpulse/internal/model"
)

func TestMemoryStore_AppendOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)

	first := &model.AnalysisReport{ID: "a", URL: "https://example.com", Metrics: []model.MetricEntry{{Key: model.MetricPerformance, Display: "87%"}}}
	second := &model.AnalysisReport{ID: "b", URL: "https://example.com", Metrics: []model.MetricEntry{{Key: model.MetricPerformance, Display: "N/A"}}}

	if err := store.Append(ctx, "s1", first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "s1", second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	list, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	if list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].Metrics[0].Display != "87%" {
		t.Errorf("first report was overwritten: %s", list[0].Metrics[0].Display)
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)

	report := &model.AnalysisReport{ID: "a", Recommendations: []model.Recommendation{{Title: "x"}}}
	_ = store.Append(ctx, "s1", report)

	// Mutating the caller's copy must not leak into the store.
	report.Recommendations[0].Title = "mutated"

	got, err := store.Get(ctx, "s1", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Recommendations[0].Title != "x" {
		t.Errorf("stored report changed: %s", got.Recommendations[0].Title)
	}

	if _, err := store.Get(ctx, "s2", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other session, got %v", err)
	}

	list, _ := store.List(ctx, "unknown")
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Append(ctx, "s1", &model.AnalysisReport{ID: fmt.Sprintf("r%d", i)})
		}(i)
	}
	wg.Wait()

	list, _ := store.List(ctx, "s1")
	if len(list) != 50 {
		t.Errorf("expected 50 entries, got %d", len(list))
	}
}

func TestMemoryStore_ExpiresIdleSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if err := store.Append(ctx, "idle", &model.AnalysisReport{ID: "a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "active", &model.AnalysisReport{ID: "b"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	now = now.Add(45 * time.Minute)
	if err := store.Append(ctx, "active", &model.AnalysisReport{ID: "c"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// idle is past its TTL; active was refreshed 30 minutes ago.
	now = now.Add(30 * time.Minute)
	if list, _ := store.List(ctx, "idle"); len(list) != 0 {
		t.Errorf("expected expired session to be empty, got %d entries", len(list))
	}
	if _, err := store.Get(ctx, "idle", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
	if list, _ := store.List(ctx, "active"); len(list) != 2 {
		t.Errorf("expected 2 entries for active session, got %d", len(list))
	}

	if err := store.Append(ctx, "fresh", &model.AnalysisReport{ID: "d"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.mu.RLock()
	_, kept := store.sessions["idle"]
	size := len(store.sessions)
	store.mu.RUnlock()
	if kept || size != 2 {
		t.Errorf("expected sweep to drop the idle session, kept=%v size=%d", kept, size)
	}
}

func TestMemoryStore_ExpiredSessionStartsOver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_ = store.Append(ctx, "s1", &model.AnalysisReport{ID: "old"})
	now = now.Add(2 * time.Hour)
	_ = store.Append(ctx, "s1", &model.AnalysisReport{ID: "new"})

	list, _ := store.List(ctx, "s1")
	if len(list) != 1 || list[0].ID != "new" {
		t.Errorf("expected only the new report, got %d entries", len(list))
	}
}
