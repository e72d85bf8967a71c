// Package schema loads the static variable/group schema the relay uses to
// resolve group views and translate enumerated values. The file is parsed
// once at startup; a malformed file is fatal because group resolution is
// undefined without it. After load the index is immutable and lookups
// cannot fail, only miss.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one enum-translation entry for a variable: an optional exact
// match value plus an optional type-only fallback. Presence flags keep
// "const": null distinguishable from a missing const.
type Rule struct {
	Const          any
	HasConst       bool
	HasType        bool
	Description    string
	HasDescription bool
}

// Index holds the normalized group/variable lookups and per-variable
// translation rules.
type Index struct {
	groups   map[string][]string
	varGroup map[string]string
	rules    map[string]map[string][]Rule
	names    []string
}

type schemaFile struct {
	Properties map[string]groupDef `json:"properties" yaml:"properties"`
}

type groupDef struct {
	Properties map[string]varDef `json:"properties" yaml:"properties"`
}

type varDef struct {
	OneOf []map[string]any `json:"oneOf" yaml:"oneOf"`
}

// Normalize maps a group or variable name onto its lookup form:
// upper-cased, spaces folded to underscores.
func Normalize(name string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// Load reads and indexes a schema file. The format is chosen by
// extension: .yaml/.yml parse as YAML, everything else as JSON.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var file schemaFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", path, err)
		}
	}
	if file.Properties == nil {
		return nil, fmt.Errorf("schema %s has no top-level properties object", path)
	}
	return build(file)
}

func build(file schemaFile) (*Index, error) {
	ix := &Index{
		groups:   make(map[string][]string, len(file.Properties)),
		varGroup: make(map[string]string),
		rules:    make(map[string]map[string][]Rule),
	}
	for groupName, def := range file.Properties {
		g := Normalize(groupName)
		if _, dup := ix.groups[g]; dup {
			return nil, fmt.Errorf("groups %q collide after normalization", groupName)
		}
		members := make([]string, 0, len(def.Properties))
		for varName, vd := range def.Properties {
			v := Normalize(varName)
			if prev, ok := ix.varGroup[v]; ok && prev != g {
				return nil, fmt.Errorf("variable %q declared in both %q and %q", v, prev, g)
			}
			ix.varGroup[v] = g
			members = append(members, v)
			if len(vd.OneOf) > 0 {
				rules := make([]Rule, 0, len(vd.OneOf))
				for _, entry := range vd.OneOf {
					rules = append(rules, buildRule(entry))
				}
				if ix.rules[g] == nil {
					ix.rules[g] = make(map[string][]Rule)
				}
				ix.rules[g][v] = rules
			}
		}
		sort.Strings(members)
		ix.groups[g] = members
		ix.names = append(ix.names, g)
	}
	sort.Strings(ix.names)
	return ix, nil
}

func buildRule(entry map[string]any) Rule {
	var r Rule
	if v, ok := entry["const"]; ok {
		r.HasConst = true
		r.Const = normalizeNumber(v)
	}
	if _, ok := entry["type"]; ok {
		r.HasType = true
	}
	if v, ok := entry["description"]; ok {
		r.HasDescription = true
		r.Description = fmt.Sprint(v)
	}
	return r
}

// Group returns the member variables of a declared group.
func (ix *Index) Group(name string) ([]string, bool) {
	members, ok := ix.groups[Normalize(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), members...), true
}

// GroupOf returns the declared group a variable belongs to.
func (ix *Index) GroupOf(variable string) (string, bool) {
	g, ok := ix.varGroup[Normalize(variable)]
	return g, ok
}

// Groups lists all declared group names, sorted.
func (ix *Index) Groups() []string {
	return append([]string(nil), ix.names...)
}

// Translate maps a raw variable value to its display form. A variable
// with no rules passes through unchanged. Otherwise the first exact
// const match wins, returning its description (or the printed raw value
// when the rule has none); failing that, the first type-only rule
// returns its description (or "Unknown"); failing that, "Unknown".
func (ix *Index) Translate(group, variable string, raw any) any {
	rules := ix.rules[Normalize(group)][Normalize(variable)]
	if len(rules) == 0 {
		return raw
	}
	for _, r := range rules {
		if r.HasConst && scalarEqual(r.Const, raw) {
			if r.HasDescription {
				return r.Description
			}
			return fmt.Sprint(raw)
		}
	}
	for _, r := range rules {
		if r.HasType {
			if r.HasDescription {
				return r.Description
			}
			return "Unknown"
		}
	}
	return "Unknown"
}

// normalizeNumber widens integral types to float64 so YAML-sourced consts
// compare equal to JSON-decoded snapshot values.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func scalarEqual(a, b any) bool {
	a = normalizeNumber(a)
	b = normalizeNumber(b)
	if !comparableScalar(a) || !comparableScalar(b) {
		return false
	}
	return a == b
}

func comparableScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, float64:
		return true
	default:
		return false
	}
}
