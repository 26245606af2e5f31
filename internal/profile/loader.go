package profile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader resolves profiles by name against a packaged base directory and
// an optional per-user override directory mirroring its layout. A name
// may carry a relative path ("keysight/34465a"); the same relative path
// is probed under both directories.
type Loader struct {
	BaseDir     string
	OverrideDir string
}

// DefaultOverrideDir returns the per-user override location, derived from
// os.UserConfigDir. Empty when the platform reports no config directory.
func DefaultOverrideDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "virtbench", "profiles")
}

// Load resolves a profile name: read the base document, overlay the
// override document when one exists, validate the merged tree against the
// embedded schema, and decode it into its typed form.
func (l Loader) Load(name string) (*Profile, error) {
	rel := name
	if filepath.Ext(rel) == "" {
		rel += ".yaml"
	}

	tree, err := LoadFile(filepath.Join(l.BaseDir, rel))
	if err != nil {
		return nil, err
	}

	if l.OverrideDir != "" {
		ovPath := filepath.Join(l.OverrideDir, rel)
		if _, statErr := os.Stat(ovPath); statErr == nil {
			override, err := LoadFile(ovPath)
			if err != nil {
				return nil, err
			}
			tree = Merge(tree, override)
		}
	}

	return Decode(name, tree)
}

// LoadFile reads a single profile document into its raw tree form.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ProfileError{Profile: path, Detail: "read profile", Err: err}
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, &ProfileError{Profile: path, Detail: "parse profile", Err: err}
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// Decode validates a raw tree against the profile schema and produces the
// typed Profile. The tree is re-marshaled and strictly decoded, so a
// field the schema somehow let through still fails here.
func Decode(name string, tree map[string]any) (*Profile, error) {
	if err := ValidateTree(name, tree); err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, &ProfileError{Profile: name, Detail: "re-encode merged tree", Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, &ProfileError{Profile: name, Detail: "decode profile", Err: err}
	}
	p.Name = name
	return &p, nil
}

// Merge deep-merges override onto base without mutating either input.
// Nested maps merge key by key with override winning scalar conflicts;
// lists concatenate with override entries first, so override error rules
// are evaluated before packaged ones.
func Merge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}
		out[k] = mergeValue(bv, ov)
	}
	return out
}

func mergeValue(base, override any) any {
	switch ov := override.(type) {
	case map[string]any:
		if bm, ok := base.(map[string]any); ok {
			return Merge(bm, ov)
		}
	case []any:
		if bl, ok := base.([]any); ok {
			merged := make([]any, 0, len(ov)+len(bl))
			merged = append(merged, ov...)
			return append(merged, bl...)
		}
	}
	return override
}

// Flatten converts a possibly nested state map into flat dot-addressed
// keys: {"output": {"voltage": 0}} becomes {"output.voltage": 0}. Already
// flat keys pass through unchanged.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = fmt.Sprintf("%s.%s", prefix, k)
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(out, key, sub)
			continue
		}
		out[key] = v
	}
}
