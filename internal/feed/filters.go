package feed

import (
	"fmt"
	"strings"
	"time"
)

// UploadWindow buckets videos by how recently they were created.
type UploadWindow string

const (
	UploadToday UploadWindow = "today"
	UploadWeek  UploadWindow = "week"
	UploadMonth UploadWindow = "month"
)

// Sort orders for video listings.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
	SortViews  Sort = "views"
	SortLikes  Sort = "likes"
)

// Filter is the typed filter specification for video listings. Every field is
// optional; set fields combine conjunctively. Nil numeric and boolean fields
// are omitted from the query entirely rather than coerced to zero values.
type Filter struct {
	Search        string
	OwnerID       string
	Category      string
	MinDuration   *int
	MaxDuration   *int
	MinViews      *int64
	MaxViews      *int64
	UploadedSince UploadWindow
	Tags          []string
	IsShort       *bool
	OnlyPublished bool
}

// WindowStart resolves an upload window to its inclusive lower bound.
// "today" means since local midnight; "week" and "month" are rolling windows.
func WindowStart(w UploadWindow, now time.Time) (time.Time, bool) {
	switch w {
	case UploadToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case UploadWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case UploadMonth:
		return now.Add(-30 * 24 * time.Hour), true
	}
	return time.Time{}, false
}

// Predicate renders the filter as a SQL conjunction. Placeholders are numbered
// starting at argOffset+1 so callers can prepend their own arguments. An empty
// filter yields the always-true predicate.
func (f Filter) Predicate(now time.Time, argOffset int) (string, []any) {
	var (
		conds []string
		args  []any
	)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argOffset+len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + s + "%")
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE %[1]s OR description ILIKE %[1]s OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE %[1]s))", p))
	}
	if f.OwnerID != "" {
		conds = append(conds, fmt.Sprintf("owner_id = %s", next(f.OwnerID)))
	}
	if f.Category != "" {
		conds = append(conds, fmt.Sprintf("category = %s", next(f.Category)))
	}
	if f.MinDuration != nil {
		conds = append(conds, fmt.Sprintf("duration >= %s", next(*f.MinDuration)))
	}
	if f.MaxDuration != nil {
		conds = append(conds, fmt.Sprintf("duration <= %s", next(*f.MaxDuration)))
	}
	if f.MinViews != nil {
		conds = append(conds, fmt.Sprintf("views >= %s", next(*f.MinViews)))
	}
	if f.MaxViews != nil {
		conds = append(conds, fmt.Sprintf("views <= %s", next(*f.MaxViews)))
	}
	if start, ok := WindowStart(f.UploadedSince, now); ok {
		conds = append(conds, fmt.Sprintf("created_at >= %s", next(start)))
	}
	if len(f.Tags) > 0 {
		tags := make([]string, 0, len(f.Tags))
		for _, tag := range f.Tags {
			if t := strings.TrimSpace(tag); t != "" {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			conds = append(conds, fmt.Sprintf("tags && %s", next(tags)))
		}
	}
	if f.IsShort != nil {
		conds = append(conds, fmt.Sprintf("is_short = %s", next(*f.IsShort)))
	}
	if f.OnlyPublished {
		conds = append(conds, "is_published = TRUE")
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

// OrderBy maps a sort selector to an explicit ORDER BY clause. Unknown values
// fall back to newest-first.
func (s Sort) OrderBy() string {
	switch s {
	case SortOldest:
		return "created_at ASC"
	case SortViews:
		return "views DESC"
	case SortLikes:
		return "likes DESC"
	default:
		return "created_at DESC"
	}
}

// CoercePage clamps page and limit to at least one, substituting the default
// limit when none was supplied.
func CoercePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	return page, limit
}
