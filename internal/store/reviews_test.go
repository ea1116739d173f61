package store

import (
	"context"
	"testing"
	"time"
)

func TestInsertReviews_DeduplicatesByID(t *testing.T) {
	// WHAT: re-inserting an already-recorded review is a silent no-op; the
	// return value counts only genuinely new rows.
	// WHY: Review pages are rescraped on a schedule and mostly overlap the
	// previous scrape.
	st := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	first := []*Review{
		{AppKey: "popups", ReviewID: "r1", Rating: 5, PostedAt: now},
		{AppKey: "popups", ReviewID: "r2", Rating: 4, PostedAt: now},
	}
	n, err := st.InsertReviews(ctx, first)
	if err != nil {
		t.Fatalf("insert reviews: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}

	overlap := []*Review{
		{AppKey: "popups", ReviewID: "r2", Rating: 4, PostedAt: now},
		{AppKey: "popups", ReviewID: "r3", Rating: 1, PostedAt: now},
	}
	n, err = st.InsertReviews(ctx, overlap)
	if err != nil {
		t.Fatalf("insert overlap: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted = %d, want 1", n)
	}
}

func TestInsertReviews_SameIDDifferentApps(t *testing.T) {
	// WHAT: review IDs are only unique per app; two apps can share one.
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.InsertReviews(ctx, []*Review{
		{AppKey: "popups", ReviewID: "r1", PostedAt: 1},
		{AppKey: "banners", ReviewID: "r1", PostedAt: 1},
	})
	if err != nil {
		t.Fatalf("insert reviews: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d, want 2", n)
	}
}

func TestReviewWindows_TrailingCounts(t *testing.T) {
	// WHAT: the 7/30/90-day windows count reviews by posted_at cutoffs and
	// nest correctly (v7 ⊆ v30 ⊆ v90).
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	ages := []int{1, 3, 10, 20, 45, 80, 120}
	for i, days := range ages {
		_, err := st.InsertReviews(ctx, []*Review{{
			AppKey:   "popups",
			ReviewID: string(rune('a' + i)),
			PostedAt: now.AddDate(0, 0, -days).UnixMilli(),
		}})
		if err != nil {
			t.Fatalf("insert review: %v", err)
		}
	}

	v7, v30, v90, err := st.ReviewWindows(ctx, "popups", now)
	if err != nil {
		t.Fatalf("review windows: %v", err)
	}
	if v7 != 2 || v30 != 4 || v90 != 6 {
		t.Fatalf("windows = %d/%d/%d, want 2/4/6", v7, v30, v90)
	}
}

func TestReviewWindows_EmptyApp(t *testing.T) {
	// WHAT: an app with no reviews yields all-zero windows, no error.
	st := openTestStore(t)
	v7, v30, v90, err := st.ReviewWindows(context.Background(), "ghost", time.Now())
	if err != nil {
		t.Fatalf("review windows: %v", err)
	}
	if v7 != 0 || v30 != 0 || v90 != 0 {
		t.Fatalf("windows = %d/%d/%d, want zeros", v7, v30, v90)
	}
}
