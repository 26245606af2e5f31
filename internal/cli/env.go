package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds environment-driven defaults. Flags override these; the
// variables exist so a bench checkout can pin its profile layout and
// archive once instead of repeating paths on every invocation.
type Env struct {
	// ProfileDir is the packaged profile directory.
	ProfileDir string `env:"VIRTBENCH_PROFILE_DIR" envDefault:"profiles"`

	// OverrideDir is the per-user override directory. Empty falls back
	// to the platform config location.
	OverrideDir string `env:"VIRTBENCH_OVERRIDE_DIR"`

	// Archive is the session archive database path.
	Archive string `env:"VIRTBENCH_ARCHIVE"`

	// LogLevel sets the slog level: debug, info, warn, or error.
	LogLevel string `env:"VIRTBENCH_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
