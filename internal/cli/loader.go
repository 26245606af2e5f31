package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/profile"
)

// loaderFlags are the profile-resolution flags shared by every command
// that loads profiles.
type loaderFlags struct {
	ProfileDir  string
	OverrideDir string
}

// register adds the shared profile flags to a command.
func (lf *loaderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.ProfileDir, "profiles", "", "profile directory (default $VIRTBENCH_PROFILE_DIR or ./profiles)")
	cmd.Flags().StringVar(&lf.OverrideDir, "overrides", "", "override directory (default $VIRTBENCH_OVERRIDE_DIR or the user config dir)")
}

// newLoader resolves the profile loader from flags and environment.
// Flag values win over environment values; the override directory falls
// back to the platform per-user location when neither is set.
func newLoader(flags loaderFlags) (profile.Loader, error) {
	env, err := ParseEnv()
	if err != nil {
		return profile.Loader{}, err
	}

	l := profile.Loader{
		BaseDir:     env.ProfileDir,
		OverrideDir: env.OverrideDir,
	}
	if flags.ProfileDir != "" {
		l.BaseDir = flags.ProfileDir
	}
	if flags.OverrideDir != "" {
		l.OverrideDir = flags.OverrideDir
	}
	if l.OverrideDir == "" {
		l.OverrideDir = profile.DefaultOverrideDir()
	}
	return l, nil
}

// isNotExist reports whether an error chain bottoms out in a missing
// file, however many wrapping layers the loader added.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
