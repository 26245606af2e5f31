package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/virtbench/virtbench/internal/profile"
)

// Script is a YAML-scripted conversation with one instrument. Scripts
// drive any backend; when run standalone they name the profile to build
// a simulator from.
type Script struct {
	// Name uniquely identifies this script.
	Name string `yaml:"name"`

	// Description explains what the script exercises.
	Description string `yaml:"description,omitempty"`

	// Profile names the profile RunProfile builds a simulator from.
	Profile string `yaml:"profile,omitempty"`

	// Seed fixes the simulator's random source so dynamic responses are
	// reproducible. Zero means seed 0, which is still deterministic.
	Seed uint64 `yaml:"seed,omitempty"`

	// Steps execute in order.
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation.
type Step struct {
	// Op is the operation kind: write, query, or query_raw.
	Op string `yaml:"op"`

	// Command is the command text to send.
	Command string `yaml:"command"`

	// Expect is the exact response a query must produce. A present but
	// empty value demands an empty response.
	Expect *string `yaml:"expect,omitempty"`

	// ExpectMatch is a regular expression the response must match.
	// Mutually exclusive with Expect.
	ExpectMatch string `yaml:"expect_match,omitempty"`

	// Delay pauses after the step completes, pacing the script the way
	// an operator or a settling instrument would.
	Delay profile.Duration `yaml:"delay,omitempty"`
}

// Step operation constants.
const (
	OpWrite    = "write"
	OpQuery    = "query"
	OpQueryRaw = "query_raw"
)

// LoadScript reads and parses a script YAML file. Unknown fields are
// rejected (catches typos like "expct:"), and step fields are validated
// eagerly so a broken script fails at load, not mid-run.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes and validates script YAML.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	if err := validateScript(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	switch step.Op {
	case OpWrite, OpQuery, OpQueryRaw:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Command == "" {
		return fmt.Errorf("command is required")
	}

	if step.Op == OpWrite && (step.Expect != nil || step.ExpectMatch != "") {
		return fmt.Errorf("write steps produce no response to expect")
	}
	if step.Expect != nil && step.ExpectMatch != "" {
		return fmt.Errorf("expect and expect_match are mutually exclusive")
	}
	if step.ExpectMatch != "" {
		if _, err := regexp.Compile(step.ExpectMatch); err != nil {
			return fmt.Errorf("expect_match: %w", err)
		}
	}
	return nil
}
