package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cinevo/backend/internal/feed"
)

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func formInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
	if err != nil {
		return 0
	}
	return n
}

func queryIntPtr(r *http.Request, name string) *int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func queryInt64Ptr(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func queryBoolPtr(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// feedQuery translates listing query parameters into the typed filter.
// Malformed values behave like missing ones rather than failing the request.
func feedQuery(r *http.Request) (feed.Filter, feed.Sort, int, int) {
	q := r.URL.Query()

	filter := feed.Filter{
		Search:        strings.TrimSpace(q.Get("search")),
		OwnerID:       strings.TrimSpace(q.Get("userId")),
		Category:      strings.TrimSpace(q.Get("category")),
		MinDuration:   queryIntPtr(r, "minDuration"),
		MaxDuration:   queryIntPtr(r, "maxDuration"),
		MinViews:      queryInt64Ptr(r, "minViews"),
		MaxViews:      queryInt64Ptr(r, "maxViews"),
		UploadedSince: feed.UploadWindow(q.Get("uploadDate")),
		IsShort:       queryBoolPtr(r, "isShort"),
		OnlyPublished: true,
	}

	if tags := strings.TrimSpace(q.Get("tags")); tags != "" {
		filter.Tags = strings.Split(tags, ",")
	}

	sort := feed.Sort(q.Get("sort"))
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	return filter, sort, page, limit
}
