// Package aggregate holds the pure helpers behind the dashboard numbers. Every
// function accepts an empty or nil slice and returns its identity value.
package aggregate

import (
	"slices"
	"time"
)

// Count returns how many rows satisfy pred. A nil pred counts every row.
func Count[T any](rows []T, pred func(T) bool) int {
	if pred == nil {
		return len(rows)
	}
	n := 0
	for _, r := range rows {
		if pred(r) {
			n++
		}
	}
	return n
}

// CountBy groups rows by key and counts each group.
func CountBy[T any, K comparable](rows []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, r := range rows {
		out[key(r)]++
	}
	return out
}

// CountByStatus counts rows whose status equals want.
func CountByStatus[T any](rows []T, status func(T) string, want string) int {
	return Count(rows, func(r T) bool { return status(r) == want })
}

// SumBy adds value(r) over the rows accepted by pred (all rows if pred is nil).
func SumBy[T any](rows []T, value func(T) int64, pred func(T) bool) int64 {
	var sum int64
	for _, r := range rows {
		if pred == nil || pred(r) {
			sum += value(r)
		}
	}
	return sum
}

// UsageMap counts rows per referenced name, e.g. products per category.
func UsageMap[T any](rows []T, ref func(T) string) map[string]int {
	return CountBy(rows, ref)
}

// UsageCount returns how many rows reference name.
func UsageCount[T any](rows []T, ref func(T) string, name string) int {
	return Count(rows, func(r T) bool { return ref(r) == name })
}

// MostRecent returns up to n rows sorted newest first. Rows with identical
// timestamps keep their input order. The input slice is not modified; n < 0
// returns every row.
func MostRecent[T any](rows []T, n int, createdAt func(T) time.Time) []T {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b T) int {
		return createdAt(b).Compare(createdAt(a))
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []T{}
	}
	return sorted
}
