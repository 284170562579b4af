// Package visibility removes suppressed content from listings before it reaches a consumer.
package visibility

import "strings"

// SoftDeletable is content that can be hidden without being erased.
type SoftDeletable interface {
	SoftDeleted() bool
}

// Visible returns the stable-order subsequence of items that are not soft-deleted.
// The input slice is never modified. Role plays no part here: admins see the same lists.
func Visible[T SoftDeletable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !item.SoftDeleted() {
			out = append(out, item)
		}
	}
	return out
}

// Searchable exposes the text a substring search scans.
type Searchable interface {
	SoftDeletable
	SearchText() string
}

// Search is a linear, case-insensitive substring match over visible items.
// An empty query returns every visible item.
func Search[T Searchable](items []T, query string) []T {
	visible := Visible(items)
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return visible
	}
	out := make([]T, 0, len(visible))
	for _, item := range visible {
		if strings.Contains(strings.ToLower(item.SearchText()), q) {
			out = append(out, item)
		}
	}
	return out
}
