package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/schema"
)

const testSchema = `{
  "properties": {
    "COOLANT": {
      "properties": {
        "COOLANT_TEMP": {},
        "COOLANT_PUMP_STATE": {
          "oneOf": [
            {"const": 1, "description": "Running"},
            {"const": 0, "description": "Stopped"}
          ]
        }
      }
    }
  }
}`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "variables.json")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0o600))
	ix, err := schema.Load(path)
	require.NoError(t, err)
	return New(ix)
}

func TestEmptyStoreReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Snapshot()
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, _, err = s.Flatten()
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, _, err = s.ByGroup("COOLANT")
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, _, err = s.ByPath([]string{"A"})
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
	_, _, _, err = s.ListGroups()
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
}

func TestReplaceIsWholesale(t *testing.T) {
	s := newTestStore(t)

	keys := s.Replace(map[string]any{"B": 2.0, "A": 1.0}, "2026-01-01T00:00:00Z")
	assert.Equal(t, []string{"A", "B"}, keys)

	s.Replace(map[string]any{"C": 3.0}, "2026-01-01T00:01:00Z")
	data, ts, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:01:00Z", ts)
	// no merging with the prior snapshot
	assert.Equal(t, map[string]any{"C": 3.0}, data)
}

func TestReplaceNotifiesOutsideLock(t *testing.T) {
	s := newTestStore(t)
	var gotTS string
	var gotKeys []string
	s.OnReplace(func(ts string, keys []string) {
		gotTS = ts
		gotKeys = keys
		// re-entrant read must not deadlock
		_, _, err := s.Snapshot()
		assert.NoError(t, err)
	})
	s.Replace(map[string]any{"X": 1.0}, "t1")
	assert.Equal(t, "t1", gotTS)
	assert.Equal(t, []string{"X"}, gotKeys)
}

func TestFlatten(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{
		"A":     map[string]any{"B": []any{10.0, 20.0}},
		"C":     1.5,
		"EMPTY": map[string]any{},
		"NIL":   nil,
	}, "t")

	flat, _, err := s.Flatten()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"A.B[0]": 10.0,
		"A.B[1]": 20.0,
		"C":      1.5,
		"EMPTY":  map[string]any{},
		"NIL":    nil,
	}, flat)
}

func TestByGroupUnionAndTranslation(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{
		"COOLANT_TEMP":       72.5,
		"COOLANT_PUMP_STATE": 1.0,
		"REACTOR_POWER":      0.95,
	}, "t")

	out, _, err := s.ByGroup("COOLANT")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"COOLANT_TEMP":       72.5,
		"COOLANT_PUMP_STATE": "Running",
	}, out)
}

func TestByGroupSubtreeAndPrefix(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{
		"turbine":       map[string]any{"rpm": 3000.0},
		"TURBINE_TRIP":  false,
		"GENERATOR_MVA": 800.0,
	}, "t")

	out, _, err := s.ByGroup("Turbine")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"turbine":      map[string]any{"rpm": 3000.0},
		"TURBINE_TRIP": false,
	}, out)
}

func TestByGroupSingleVariable(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{"COOLANT_PUMP_STATE": 0.0}, "t")

	out, _, err := s.ByGroup("coolant_pump_state")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"COOLANT_PUMP_STATE": "Stopped"}, out)
}

func TestByGroupMisses(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{"X": 1.0}, "t")

	_, _, err := s.ByGroup("COOLANT")
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "declared group with no live members")
	_, _, err = s.ByGroup("COOLANT_TEMP")
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "declared variable absent from snapshot")
	_, _, err = s.ByGroup("NOPE")
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "unknown name")
}

func TestByPath(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{
		"A":                  map[string]any{"B": []any{10.0, 20.0}},
		"COOLANT_PUMP_STATE": 1.0,
	}, "t")

	v, _, err := s.ByPath([]string{"A", "B", "1"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)

	// case-insensitive descent
	v, _, err = s.ByPath([]string{"a", "b", "0"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, _, err = s.ByPath([]string{"A", "B", "9"})
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "index out of range")
	_, _, err = s.ByPath([]string{"A", "C"})
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "missing key")
	_, _, err = s.ByPath([]string{"A", "B", "x"})
	assert.True(t, errors.Is(err, apierr.ErrBadRequest), "non-integer index")
	_, _, err = s.ByPath([]string{"A", "B", "0", "deeper"})
	assert.True(t, errors.Is(err, apierr.ErrNotFound), "descent into scalar")

	// single-segment leaf goes through enum translation
	v, _, err = s.ByPath([]string{"coolant_pump_state"})
	require.NoError(t, err)
	assert.Equal(t, "Running", v)

	// deeper paths stay raw
	v, _, err = s.ByPath([]string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 20.0}, v)
}

func TestListGroups(t *testing.T) {
	s := newTestStore(t)
	s.Replace(map[string]any{
		"COOLANT_TEMP":  72.5,
		"REACTOR_POWER": 0.95,
		"REACTOR_TEMP":  300.0,
		"turbine":       map[string]any{"rpm": 3000.0},
		"STANDALONE":    1.0,
	}, "t")

	schemaGroups, inferred, _, err := s.ListGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"COOLANT"}, schemaGroups)
	// COOLANT is declared so its prefix is not repeated; mappings
	// contribute their own name, scalars the token before "_"
	assert.Equal(t, []string{"REACTOR", "STANDALONE", "TURBINE"}, inferred)
}
