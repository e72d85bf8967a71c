// Package state holds the single most recent telemetry snapshot and serves
// the schema-aware query views over it. The snapshot is replaced wholesale
// on each valid ingestion, never merged, so readers share nested values
// safely: a tree handed out is never mutated in place.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/schema"
)

// Store is the telemetry state cache. A zero Store is not usable; construct
// with New so group views can reach the schema index.
type Store struct {
	mu          sync.RWMutex
	schema      *schema.Index
	data        map[string]any
	lastUpdated string
	populated   bool
	onReplace   func(lastUpdated string, keys []string)
}

// New returns an empty store resolving group views through ix.
func New(ix *schema.Index) *Store {
	return &Store{schema: ix}
}

// OnReplace registers a callback invoked after every snapshot replacement,
// outside the store lock. Set once during wiring, before serving.
func (s *Store) OnReplace(fn func(lastUpdated string, keys []string)) {
	s.mu.Lock()
	s.onReplace = fn
	s.mu.Unlock()
}

// Replace swaps in a new snapshot and timestamp atomically and returns the
// sorted top-level keys. The caller hands over ownership of data and must
// not mutate it afterwards.
func (s *Store) Replace(data map[string]any, timestamp string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	s.data = data
	s.lastUpdated = timestamp
	s.populated = true
	fn := s.onReplace
	s.mu.Unlock()

	if fn != nil {
		fn(timestamp, keys)
	}
	return keys
}

// Snapshot returns a copy of the top-level snapshot mapping and its
// timestamp.
func (s *Store) Snapshot() (map[string]any, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.populated {
		return nil, "", apierr.New(apierr.ErrNotFound, "no state received yet")
	}
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, s.lastUpdated, nil
}

// Flatten returns the snapshot as a mapping of dotted/indexed paths to
// scalars: nested mappings contribute ".key" segments, sequences "[i]".
// A container that flattens to nothing is kept as-is under its own key.
func (s *Store) Flatten() (map[string]any, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.populated {
		return nil, "", apierr.New(apierr.ErrNotFound, "no state received yet")
	}
	out := make(map[string]any)
	flattenInto(out, "", s.data)
	return out, s.lastUpdated, nil
}

func flattenInto(out map[string]any, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 && prefix != "" {
			out[prefix] = val
			return
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flattenInto(out, p, val[k])
		}
	case []any:
		if len(val) == 0 && prefix != "" {
			out[prefix] = val
			return
		}
		for i, item := range val {
			flattenInto(out, fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	default:
		out[prefix] = val
	}
}

// ByGroup resolves a group, variable, or prefix view: the union of
// (a) declared members of the schema group present as top-level keys,
// (b) a top-level key equal to the name after normalization, kept as a
// sub-tree when it is itself a mapping, and (c) every top-level key
// starting with "<NAME>_" case-insensitively. Scalar values are translated
// through the schema index using the variable's own group when it has one,
// the queried name otherwise.
func (s *Store) ByGroup(name string) (map[string]any, string, error) {
	n := schema.Normalize(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.populated {
		return nil, "", apierr.New(apierr.ErrNotFound, "no state received yet")
	}

	out := make(map[string]any)
	if members, ok := s.schema.Group(n); ok {
		for _, v := range members {
			if val, exists := s.data[v]; exists {
				out[v] = s.translate(n, v, val)
			}
		}
	}
	prefix := n + "_"
	for k, val := range s.data {
		nk := schema.Normalize(k)
		switch {
		case nk == n:
			if _, isMap := val.(map[string]any); isMap {
				out[k] = val
			} else {
				out[k] = s.translate(n, k, val)
			}
		case strings.HasPrefix(nk, prefix):
			if _, exists := out[k]; !exists {
				out[k] = s.translate(n, k, val)
			}
		}
	}

	if len(out) == 0 {
		if _, ok := s.schema.Group(n); ok {
			return nil, "", apierr.New(apierr.ErrNotFound, "no variables found for group %q", name)
		}
		if _, ok := s.schema.GroupOf(n); ok {
			return nil, "", apierr.New(apierr.ErrNotFound, "variable %q not found in current state", name)
		}
		return nil, "", apierr.New(apierr.ErrNotFound, "no group or variable %q defined", name)
	}
	return out, s.lastUpdated, nil
}

// ByPath walks the snapshot depth-first: each segment resolves against
// mapping keys case-insensitively or as an integer sequence index. A
// single-segment result is translated through the schema index; deeper
// paths return the raw value.
func (s *Store) ByPath(segments []string) (any, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.populated {
		return nil, "", apierr.New(apierr.ErrNotFound, "no state received yet")
	}
	if len(segments) == 0 {
		return nil, "", apierr.New(apierr.ErrBadRequest, "empty path")
	}

	var cur any = s.data
	var leafKey string
	for i, seg := range segments {
		switch node := cur.(type) {
		case map[string]any:
			val, key, ok := lookupKey(node, seg)
			if !ok {
				return nil, "", apierr.New(apierr.ErrNotFound, "key %q not found", seg)
			}
			if i == 0 {
				leafKey = key
			}
			cur = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, "", apierr.New(apierr.ErrBadRequest, "index %q is not an integer", seg)
			}
			if idx < 0 || idx >= len(node) {
				return nil, "", apierr.New(apierr.ErrNotFound, "index %d out of range", idx)
			}
			cur = node[idx]
		default:
			return nil, "", apierr.New(apierr.ErrNotFound, "cannot descend into scalar with %q", seg)
		}
	}

	if len(segments) == 1 {
		return s.translate("", leafKey, cur), s.lastUpdated, nil
	}
	return cur, s.lastUpdated, nil
}

// lookupKey resolves a path segment against mapping keys: exact match
// first, then the first case-insensitive match.
func lookupKey(m map[string]any, seg string) (any, string, bool) {
	if v, ok := m[seg]; ok {
		return v, seg, true
	}
	for k, v := range m {
		if strings.EqualFold(k, seg) {
			return v, k, true
		}
	}
	return nil, "", false
}

// ListGroups returns the schema-declared group names plus groups inferred
// from the snapshot: a top-level mapping key contributes its own name,
// every other top-level key the token before its first underscore. Names
// already declared by the schema are not repeated; both lists are sorted.
func (s *Store) ListGroups() (schemaGroups, inferred []string, lastUpdated string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.populated {
		return nil, nil, "", apierr.New(apierr.ErrNotFound, "no state received yet")
	}

	schemaGroups = s.schema.Groups()
	declared := make(map[string]bool, len(schemaGroups))
	for _, g := range schemaGroups {
		declared[g] = true
	}

	seen := make(map[string]bool)
	inferred = []string{}
	for k, v := range s.data {
		name := schema.Normalize(k)
		if _, isMap := v.(map[string]any); !isMap {
			if i := strings.Index(name, "_"); i >= 0 {
				name = name[:i]
			}
		}
		if name == "" || declared[name] || seen[name] {
			continue
		}
		seen[name] = true
		inferred = append(inferred, name)
	}
	sort.Strings(inferred)
	return schemaGroups, inferred, s.lastUpdated, nil
}

func (s *Store) translate(queried, variable string, raw any) any {
	group, ok := s.schema.GroupOf(variable)
	if !ok {
		group = queried
	}
	return s.schema.Translate(group, variable, raw)
}
