// Package session defines the recorded-conversation model shared by the
// recorder, the replay backend, and the archive.
//
// A session is a finite, ordered log of operations observed on one
// instrument: writes, queries, and raw queries, each with the command
// text, the response where one was produced, and a timestamp in seconds
// relative to the start of the session. Entries are immutable once
// loaded; everything downstream (replay, verification, export) treats the
// log as a fixed script.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind identifies the operation that produced a session entry.
type Kind string

const (
	KindWrite    Kind = "write"
	KindQuery    Kind = "query"
	KindQueryRaw Kind = "query_raw"
)

// IsQuery reports whether the kind carries a response.
func (k Kind) IsQuery() bool {
	return k == KindQuery || k == KindQueryRaw
}

// Entry is one recorded operation.
type Entry struct {
	Kind    Kind   `yaml:"kind"`
	Command string `yaml:"command"`
	// Response holds the text a query produced. Empty for writes and for
	// queries whose response was empty; the two are not distinguished.
	Response string `yaml:"response,omitempty"`
	// Timestamp is seconds since the session started.
	Timestamp float64 `yaml:"timestamp"`
}

// Session is a recorded conversation with one instrument.
type Session struct {
	// ID is assigned by the recorder. Empty for hand-written logs.
	ID string `yaml:"id,omitempty"`
	// Profile names the profile the instrument was simulated from, when
	// known. Used by verification to rebuild the matching simulator.
	Profile string `yaml:"profile,omitempty"`
	Log     []Entry `yaml:"log"`
}

// File is session storage keyed by instrument alias. One file can hold
// the sessions of every instrument on a bench.
type File map[string]Session

// Session returns the recorded session for an instrument alias.
func (f File) Session(alias string) (Session, error) {
	s, ok := f[alias]
	if !ok {
		return Session{}, fmt.Errorf("no session recorded for alias %q", alias)
	}
	return s, nil
}

// LoadFile reads a session file from disk.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a session file. Unknown fields are rejected so a typo in
// a hand-edited log fails loudly instead of silently dropping an entry
// attribute.
func Parse(data []byte) (File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return nil, fmt.Errorf("parse session file: %w", err)
	}

	for alias, s := range f {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("session %q: %w", alias, err)
		}
	}
	return f, nil
}

// WriteFile writes a session file to disk.
func WriteFile(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func validate(s Session) error {
	for i, e := range s.Log {
		switch e.Kind {
		case KindWrite, KindQuery, KindQueryRaw:
		default:
			return fmt.Errorf("log[%d]: unknown kind %q", i, e.Kind)
		}
		if e.Command == "" {
			return fmt.Errorf("log[%d]: empty command", i)
		}
	}
	return nil
}
