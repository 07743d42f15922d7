// Package filter applies client-side list filters on top of server results.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

// Criteria defines filtering criteria for entities.
// All filters are ANDed together - an entity must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	TypeGlob         string // Glob pattern for entity type, empty = no filter
	Tag              string // Exact tag match, empty = no filter
}

// Matches returns true if the entity matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(e *sibyl.Entity) bool {
	// Time filtering on creation timestamp
	if c.SinceTimestampMs > 0 && e.CreatedAt.UnixMilli() < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && e.CreatedAt.UnixMilli() > c.UntilTimestampMs {
		return false
	}

	// Type filtering - glob pattern matching, case-insensitive
	if c.TypeGlob != "" {
		matched, err := filepath.Match(strings.ToLower(c.TypeGlob), strings.ToLower(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	// Tag filtering - exact match against any tag
	if c.Tag != "" {
		found := false
		for _, tag := range e.Tags {
			if tag == c.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.TypeGlob != "" ||
		c.Tag != ""
}

// Apply returns the entities matching the criteria, preserving order.
func (c *Criteria) Apply(entities []sibyl.Entity) []sibyl.Entity {
	if !c.HasFilters() {
		return entities
	}

	var out []sibyl.Entity
	for i := range entities {
		if c.Matches(&entities[i]) {
			out = append(out, entities[i])
		}
	}
	return out
}
