// Package parse turns loosely formatted model output into structured values.
package parse

import (
	"iter"
	"strings"
	"unicode/utf8"
)

const bulletMarkers = "-*•"

// BulletPoints yields the items of lines that start with "-", "*" or "•",
// ignoring leading indentation. Iteration is lazy and can be repeated; every
// pass over the same text yields the same items in order, duplicates included.
// Markers with nothing after them are skipped.
func BulletPoints(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for line := range strings.Lines(text) {
			item, ok := bulletItem(line)
			if !ok {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

// CollectBullets is BulletPoints materialised, capped at limit items when limit > 0
func CollectBullets(text string, limit int) []string {
	items := []string{}
	for item := range BulletPoints(text) {
		if limit > 0 && len(items) == limit {
			break
		}
		items = append(items, item)
	}
	return items
}

func bulletItem(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	r, size := utf8.DecodeRuneInString(trimmed)
	if size == 0 || !strings.ContainsRune(bulletMarkers, r) {
		return "", false
	}
	item := strings.TrimSpace(trimmed[size:])
	if item == "" {
		return "", false
	}
	return item, true
}
