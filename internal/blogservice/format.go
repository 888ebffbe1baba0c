package blogservice

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// WordsPerMinute is the reading speed used for read time estimates.
const WordsPerMinute = 200

// isoLayout matches the millisecond ISO-8601 timestamps browsers produce.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// ReadTime estimates minutes of reading, rounded up. Empty content reads in 0.
func ReadTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}

	return (words + WordsPerMinute - 1) / WordsPerMinute
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders an ISO date as "Jan 2, 2006". Unparsable input is
// returned unchanged.
func FormatDate(date string) string {
	t, ok := parseDate(date)
	if !ok {
		return date
	}

	return t.Format("Jan 2, 2006")
}

// RelativeTime describes how long ago date was, in the coarsest whole unit.
func RelativeTime(date string) string {
	return relativeTime(date, time.Now())
}

func relativeTime(date string, now time.Time) string {
	t, ok := parseDate(date)
	if !ok {
		return ""
	}

	diff := now.Sub(t)
	switch {
	case diff >= 24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "day")
	case diff >= time.Hour:
		return plural(int(diff/time.Hour), "hour")
	case diff >= time.Minute:
		return plural(int(diff/time.Minute), "minute")
	default:
		return "Just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// Truncate cuts text to n runes and marks the cut with "...".
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	return string(runes[:n]) + "..."
}

// ParseCategories splits comma separated input, trimming entries and
// dropping empty ones.
func ParseCategories(s string) []string {
	categories := []string{}
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	return categories
}

// FilterBlogs keeps the blogs whose title, description or one of whose
// categories contains query, ignoring case. A blank query keeps everything.
func FilterBlogs(blogs []Blog, query string) []Blog {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return blogs
	}

	matches := []Blog{}
	for _, b := range blogs {
		if matchesQuery(b, query) {
			matches = append(matches, b)
		}
	}
	return matches
}

func matchesQuery(b Blog, query string) bool {
	if strings.Contains(strings.ToLower(b.Title), query) || strings.Contains(strings.ToLower(b.Description), query) {
		return true
	}

	for _, c := range b.Category {
		if strings.Contains(strings.ToLower(c), query) {
			return true
		}
	}
	return false
}
