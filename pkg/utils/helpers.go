package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "45s", falling back to def
func ParseDuration(d string, def time.Duration) time.Duration {
	if d == "" {
		return def
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return def
	}
	return duration
}

// SplitList splits a comma-separated list, trimming blanks and dropping empty items.
// "*" and "" both mean "everything" and yield nil.
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// MaxYearSpan bounds how many years one range may cover
const MaxYearSpan = 200

// ParseYears parses "2020", "2019-2021" (either order) or "2018,2020-2021"
// into a sorted, de-duplicated list.
func ParseYears(expr string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range SplitList(expr) {
		from, to, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(to)); err != nil {
				return nil, fmt.Errorf("invalid year range %q", part)
			}
		}
		if b < a {
			a, b = b, a
		}
		if b-a >= MaxYearSpan {
			return nil, fmt.Errorf("year range %q spans more than %d years", part, MaxYearSpan)
		}
		for y := a; y <= b; y++ {
			seen[y] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no years in %q", expr)
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}
