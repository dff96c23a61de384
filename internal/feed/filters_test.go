package feed

import (
	"strings"
	"testing"
	"time"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestFilterPredicateEmpty(t *testing.T) {
	clause, args := Filter{}.Predicate(time.Now(), 0)
	if clause != "TRUE" {
		t.Fatalf("expected TRUE for empty filter, got %q", clause)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestFilterPredicateNumbersFromOffset(t *testing.T) {
	filter := Filter{
		OwnerID:     "owner-1",
		Category:    "music",
		MinDuration: intPtr(30),
	}

	clause, args := filter.Predicate(time.Now(), 2)
	if !strings.Contains(clause, "owner_id = $3") {
		t.Fatalf("expected owner placeholder $3, got %q", clause)
	}
	if !strings.Contains(clause, "category = $4") {
		t.Fatalf("expected category placeholder $4, got %q", clause)
	}
	if !strings.Contains(clause, "duration >= $5") {
		t.Fatalf("expected duration placeholder $5, got %q", clause)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if args[0] != "owner-1" || args[1] != "music" || args[2] != 30 {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestFilterPredicateSearchMatchesTitleDescriptionTags(t *testing.T) {
	clause, args := Filter{Search: "  synth  "}.Predicate(time.Now(), 0)
	for _, want := range []string{"title ILIKE $1", "description ILIKE $1", "unnest(tags)"} {
		if !strings.Contains(clause, want) {
			t.Fatalf("expected clause to contain %q, got %q", want, clause)
		}
	}
	if len(args) != 1 || args[0] != "%synth%" {
		t.Fatalf("expected single trimmed wildcard arg, got %v", args)
	}
}

func TestFilterPredicateRanges(t *testing.T) {
	filter := Filter{
		MinDuration:   intPtr(0),
		MaxDuration:   intPtr(60),
		MinViews:      int64Ptr(10),
		MaxViews:      int64Ptr(1000),
		IsShort:       boolPtr(true),
		OnlyPublished: true,
	}

	clause, args := filter.Predicate(time.Now(), 0)
	for _, want := range []string{
		"duration >= $1",
		"duration <= $2",
		"views >= $3",
		"views <= $4",
		"is_short = $5",
		"is_published = TRUE",
	} {
		if !strings.Contains(clause, want) {
			t.Fatalf("expected clause to contain %q, got %q", want, clause)
		}
	}
	// A set pointer to zero still filters; only nil is omitted.
	if len(args) != 5 || args[0] != 0 {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestFilterPredicateTagsDropsBlanks(t *testing.T) {
	clause, args := Filter{Tags: []string{" go ", "", "music"}}.Predicate(time.Now(), 0)
	if !strings.Contains(clause, "tags && $1") {
		t.Fatalf("expected overlap clause, got %q", clause)
	}
	tags, ok := args[0].([]string)
	if !ok {
		t.Fatalf("expected []string arg, got %T", args[0])
	}
	if len(tags) != 2 || tags[0] != "go" || tags[1] != "music" {
		t.Fatalf("unexpected tags %v", tags)
	}

	clause, args = Filter{Tags: []string{"  ", ""}}.Predicate(time.Now(), 0)
	if clause != "TRUE" || len(args) != 0 {
		t.Fatalf("expected all-blank tags to be ignored, got %q %v", clause, args)
	}
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, time.March, 15, 13, 45, 12, 0, time.UTC)

	start, ok := WindowStart(UploadToday, now)
	if !ok {
		t.Fatal("expected today window to resolve")
	}
	if want := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected midnight %v, got %v", want, start)
	}

	start, ok = WindowStart(UploadWeek, now)
	if !ok || !start.Equal(now.Add(-7*24*time.Hour)) {
		t.Fatalf("unexpected week window %v ok=%v", start, ok)
	}

	start, ok = WindowStart(UploadMonth, now)
	if !ok || !start.Equal(now.Add(-30*24*time.Hour)) {
		t.Fatalf("unexpected month window %v ok=%v", start, ok)
	}

	if _, ok := WindowStart(UploadWindow("year"), now); ok {
		t.Fatal("expected unknown window to be rejected")
	}
	if _, ok := WindowStart("", now); ok {
		t.Fatal("expected empty window to be rejected")
	}
}

func TestSortOrderBy(t *testing.T) {
	cases := map[Sort]string{
		SortNewest:    "created_at DESC",
		SortOldest:    "created_at ASC",
		SortViews:     "views DESC",
		SortLikes:     "likes DESC",
		Sort("bogus"): "created_at DESC",
		Sort(""):      "created_at DESC",
	}
	for sort, want := range cases {
		if got := sort.OrderBy(); got != want {
			t.Fatalf("sort %q: expected %q got %q", sort, want, got)
		}
	}
}

func TestCoercePage(t *testing.T) {
	page, limit := CoercePage(0, 0, 10)
	if page != 1 || limit != 10 {
		t.Fatalf("expected defaults 1/10, got %d/%d", page, limit)
	}

	page, limit = CoercePage(-3, -5, 10)
	if page != 1 || limit != 10 {
		t.Fatalf("expected negatives coerced to 1/10, got %d/%d", page, limit)
	}

	page, limit = CoercePage(4, 25, 10)
	if page != 4 || limit != 25 {
		t.Fatalf("expected explicit values preserved, got %d/%d", page, limit)
	}

	if _, limit = CoercePage(1, 0, 0); limit != 1 {
		t.Fatalf("expected zero default limit coerced to 1, got %d", limit)
	}
}
