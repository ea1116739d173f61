package store

import (
	"context"
	"testing"
	"time"
)

var appFields = []string{"name", "rating", "review_count", "features"}

func TestDetectChanges_FirstSnapshotIsBaseline(t *testing.T) {
	// WHAT: with only one snapshot, detection records nothing.
	// WHY: There is no "before" to compare against; a new tracked app must
	// not flood the change feed with its entire listing.
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.RecordSnapshot(ctx, EntityApp, "popups", Fields{"name": "Popups"}, time.Now())
	if err != nil {
		t.Fatalf("record snapshot: %v", err)
	}
	changes, err := st.DetectChanges(ctx, EntityApp, "popups", appFields)
	if err != nil {
		t.Fatalf("detect changes: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("baseline produced %d changes", len(changes))
	}
}

func TestDetectChanges_OneRowPerChangedField(t *testing.T) {
	// WHAT: each differing tracked field yields exactly one FieldChange
	// carrying the full old and new JSON values.
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	_, err := st.RecordSnapshot(ctx, EntityApp, "popups", Fields{
		"name": "Popups", "rating": 4.5, "review_count": 100,
		"features": []string{"banners", "timers"},
	}, base)
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	_, err = st.RecordSnapshot(ctx, EntityApp, "popups", Fields{
		"name": "Popups", "rating": 4.5, "review_count": 120,
		"features": []string{"banners", "spinners"},
	}, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}

	changes, err := st.DetectChanges(ctx, EntityApp, "popups", appFields)
	if err != nil {
		t.Fatalf("detect changes: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2 (review_count, features): %+v", len(changes), changes)
	}

	byField := map[string]*FieldChange{}
	for _, c := range changes {
		byField[c.Field] = c
	}
	rc, ok := byField["review_count"]
	if !ok {
		t.Fatal("review_count change missing")
	}
	if rc.OldValue != "100" || rc.NewValue != "120" {
		t.Fatalf("review_count values = %s → %s", rc.OldValue, rc.NewValue)
	}
	if _, ok := byField["features"]; !ok {
		t.Fatal("features change missing")
	}
}

func TestDetectChanges_ListOrderIsNotAChange(t *testing.T) {
	// WHAT: list fields compare as sets; reordering alone records nothing.
	// WHY: The marketplace reorders feature tags freely; only membership
	// changes are signal.
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"features": []string{"a", "b", "c"}}, base)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"features": []string{"c", "a", "b"}}, base.Add(time.Minute))

	changes, err := st.DetectChanges(ctx, EntityApp, "x", []string{"features"})
	if err != nil {
		t.Fatalf("detect changes: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("reordering recorded %d changes", len(changes))
	}
}

func TestSnapshots_AppendOnlyHistory(t *testing.T) {
	// WHAT: recording never overwrites; LatestSnapshot tracks max scraped_at.
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Hour)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"name": "v1"}, base)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"name": "v2"}, base.Add(time.Hour))

	var count int
	if err := st.DB.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 2 {
		t.Fatalf("snapshot count = %d, want 2", count)
	}

	latest, err := st.LatestSnapshot(ctx, EntityApp, "x")
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if latest.Fields["name"] != "v2" {
		t.Fatalf("latest name = %v, want v2", latest.Fields["name"])
	}
}

func TestLatestSnapshot_NilWhenAbsent(t *testing.T) {
	// WHAT: an entity with no history returns nil, not an error.
	st := openTestStore(t)
	snap, err := st.LatestSnapshot(context.Background(), EntityApp, "nope")
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil, got %+v", snap)
	}
}

func TestListChangesSince_CutoffFilter(t *testing.T) {
	// WHAT: only changes detected at or after the cutoff are returned.
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"name": "v1"}, base)
	st.RecordSnapshot(ctx, EntityApp, "x", Fields{"name": "v2"}, base.Add(time.Minute))
	if _, err := st.DetectChanges(ctx, EntityApp, "x", []string{"name"}); err != nil {
		t.Fatalf("detect changes: %v", err)
	}

	recent, err := st.ListChangesSince(ctx, time.Now().Add(-time.Minute).UnixMilli(), 10)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("recent changes = %d, want 1", len(recent))
	}

	future, err := st.ListChangesSince(ctx, time.Now().Add(time.Hour).UnixMilli(), 10)
	if err != nil {
		t.Fatalf("list future: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("future changes = %d, want 0", len(future))
	}
}
