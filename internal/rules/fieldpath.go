// internal/rules/fieldpath.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/formkeeper/internal/types"
)

/*
 * Dotted path resolution for form data snapshots.
 *
 * Input names double as addresses into the data snapshot ("address.city").
 * Resolution never fails loudly: a missing key, a null or scalar
 * intermediate, or an out-of-range index all resolve to "absent". Missing
 * data is the normal state of a half-filled form.
 *
 * Key functions:
 *   - ParsePath: splits and validates a dotted path once (compile time)
 *   - Path.Lookup: traverses a snapshot following the parsed segments
 *   - Get / Exists: string-path conveniences used outside compiled forms
 *   - Set: writes a value at a dotted path, creating intermediate maps
 *
 * Flat snapshots: a top-level key equal to the whole dotted path wins over
 * nested traversal, so {"address.city": "Lyon"} and
 * {"address": {"city": "Lyon"}} both resolve "address.city".
 */

// PathSegment represents one component of a dotted path.
type PathSegment struct {
	Key     string // map key; always set
	Index   int    // array index when IsIndex
	IsIndex bool   // segment is a non-negative integer and may index []any
}

// Path is a parsed dotted path.
type Path struct {
	raw      string
	segments []PathSegment
}

// ParsePath validates and splits a dotted path.
// Returns ErrInvalidPath for empty paths, empty segments, or paths deeper
// than MaxPathDepth.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("%w: empty path", types.ErrInvalidPath)
	}
	parts := strings.Split(raw, ".")
	if len(parts) > types.MaxPathDepth {
		return Path{}, fmt.Errorf("%w: %q exceeds %d segments", types.ErrInvalidPath, raw, types.MaxPathDepth)
	}

	segments := make([]PathSegment, len(parts))
	for i, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("%w: %q has an empty segment", types.ErrInvalidPath, raw)
		}
		seg := PathSegment{Key: part}
		if idx, ok := parseIndex(part); ok {
			seg.Index = idx
			seg.IsIndex = true
		}
		segments[i] = seg
	}
	return Path{raw: raw, segments: segments}, nil
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return p.raw
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p.segments)
}

// Lookup resolves the path against data.
// Returns (nil, false) when any segment is missing or not traversable.
// A present JSON null resolves to (nil, true).
func (p Path) Lookup(data any) (any, bool) {
	if len(p.segments) == 0 {
		return nil, false
	}

	// Flat snapshot keyed by the full dotted name.
	if len(p.segments) > 1 {
		if m, ok := data.(map[string]any); ok {
			if v, found := m[p.raw]; found {
				return v, true
			}
		}
	}

	current := data
	for _, seg := range p.segments {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg.Key]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := v[seg.Key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if !seg.IsIndex || seg.Index >= len(v) {
				return nil, false
			}
			current = v[seg.Index]
		default:
			// Null or scalar value but path continues
			return nil, false
		}
	}
	return current, true
}

// Get resolves a dotted path string against data.
// Invalid paths resolve to absent.
func Get(data any, path string) (any, bool) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, false
	}
	return p.Lookup(data)
}

// Exists reports whether path resolves to a present, non-null value.
// Null counts as "no value", matching how forms clear a field.
func Exists(data any, path string) bool {
	v, ok := Get(data, path)
	return ok && v != nil
}

// Set writes value at path inside data, creating intermediate maps.
// Returns ErrPathConflict when an intermediate segment holds a non-map value.
// Unlike the read side, Set mutates its argument; it is a builder for
// snapshots, never called by the engine.
func Set(data map[string]any, path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	current := data
	last := len(p.segments) - 1
	for i, seg := range p.segments {
		if i == last {
			current[seg.Key] = value
			return nil
		}
		next, ok := current[seg.Key]
		if !ok || next == nil {
			child := make(map[string]any)
			current[seg.Key] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q at segment %q", types.ErrPathConflict, path, seg.Key)
		}
		current = child
	}
	return nil
}

// parseIndex accepts plain non-negative decimal integers ("0", "12").
func parseIndex(s string) (int, bool) {
	if len(s) == 0 || len(s) > 9 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
