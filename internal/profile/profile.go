// Package profile loads, merges, and validates instrument profiles.
//
// A profile is a YAML document describing an instrument's command surface:
// an initial state, a scpi section mapping command keys to responses, and
// an optional list of error rules feeding the instrument error queue.
// Profiles resolve through two layers: a packaged base directory and a
// per-user override directory mirroring its layout. The override document
// is deep-merged onto the base, the merged tree is validated against an
// embedded CUE schema, and only then decoded into its typed form.
package profile

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the typed form of a profile document after merging and
// schema validation.
type Profile struct {
	// Name is the profile name the loader resolved, not part of the
	// document itself.
	Name string `yaml:"-"`

	// InitialState seeds the simulator's state store. Nested maps are
	// allowed and flatten into dot-addressed keys.
	InitialState map[string]any `yaml:"initial_state,omitempty"`

	// SCPI maps command keys to their responses. A key containing capture
	// slots or regex metacharacters becomes a pattern rule; everything
	// else is an exact-match entry.
	SCPI map[string]Response `yaml:"scpi,omitempty"`

	// Errors are evaluated after every dispatched command whose text
	// matches their pattern.
	Errors []ErrorRule `yaml:"errors,omitempty"`
}

// Response is the raw response specification for one command key. A YAML
// scalar is shorthand for a literal or template response; a mapping
// spells out the action fields.
type Response struct {
	// Scalar is non-nil when the value was a plain string.
	Scalar *string
	// Action is non-nil when the value was a mapping.
	Action *Action
}

// Action is the long-form response shape. Fields execute in a fixed
// order regardless of their order in the document: set, inc, dec, then
// get or response, with delay honored last.
type Action struct {
	Delay    Duration           `yaml:"delay,omitempty"`
	Set      map[string]any     `yaml:"set,omitempty"`
	Inc      map[string]float64 `yaml:"inc,omitempty"`
	Dec      map[string]float64 `yaml:"dec,omitempty"`
	Get      string             `yaml:"get,omitempty"`
	Response string             `yaml:"response,omitempty"`
}

// UnmarshalYAML accepts either shape of a response value. Structural
// strictness for the mapping form comes from the schema validation pass,
// which runs before typed decoding.
func (r *Response) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		r.Scalar = &s
		return nil
	case yaml.MappingNode:
		var a Action
		if err := value.Decode(&a); err != nil {
			return err
		}
		r.Action = &a
		return nil
	default:
		return fmt.Errorf("line %d: response must be a string or an action map", value.Line)
	}
}

// MarshalYAML renders the compact form a profile author would write.
func (r Response) MarshalYAML() (any, error) {
	if r.Scalar != nil {
		return *r.Scalar, nil
	}
	if r.Action != nil {
		return r.Action, nil
	}
	return nil, fmt.Errorf("empty response")
}

// ErrorRule queues an instrument error when its pattern matches a
// dispatched command and its condition holds. An empty condition always
// holds.
type ErrorRule struct {
	Pattern   string `yaml:"pattern"`
	Condition string `yaml:"condition,omitempty"`
	Code      int    `yaml:"code"`
	Message   string `yaml:"message"`
}

// Duration is a time.Duration that decodes from Go duration literals
// such as "50ms" or "1.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
