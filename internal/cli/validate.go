package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/profile"
	"github.com/virtbench/virtbench/internal/sim"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Loader loaderFlags
}

// ProfileReport holds the validation outcome for one profile.
type ProfileReport struct {
	Profile string `json:"profile"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

// ValidationResult holds validation results across all named profiles.
type ValidationResult struct {
	Profiles []ProfileReport `json:"profiles"`
	Valid    bool            `json:"valid"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <profile>...",
		Short: "Validate instrument profiles",
		Long: `Validate instrument profiles without running anything.

Each named profile is resolved against the profile directory, merged
with its override layer, checked against the profile schema, and
compiled into a dispatch table. Pattern keys, response expressions,
and error-rule conditions are all exercised, so a profile that
validates here will load in the simulator.

Exit codes:
  0 - All profiles valid
  1 - One or more profiles invalid
  2 - Command error (profile not found, etc.)

Examples:
  virtbench validate dmm
  virtbench validate dmm psu scope --profiles ./profiles
  virtbench validate dmm --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	opts.Loader.register(cmd)

	return cmd
}

func runValidate(opts *ValidateOptions, names []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loader, err := newLoader(opts.Loader)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	result := ValidationResult{
		Profiles: make([]ProfileReport, 0, len(names)),
		Valid:    true,
	}

	for _, name := range names {
		formatter.VerboseLog("Validating profile: %s", name)

		report := ProfileReport{Profile: name, Valid: true}
		if err := checkProfile(loader, name); err != nil {
			if isNotExist(err) {
				return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("profile not found: %s", name))
			}
			report.Valid = false
			report.Error = err.Error()
			result.Valid = false
		}
		result.Profiles = append(result.Profiles, report)
	}

	if opts.Format == "json" {
		return outputValidateJSON(formatter, result)
	}
	return outputValidateText(formatter, result)
}

// checkProfile loads, merges, schema-validates, and compiles one profile.
func checkProfile(loader profile.Loader, name string) error {
	p, err := loader.Load(name)
	if err != nil {
		return err
	}
	_, err = sim.Describe(p)
	return err
}

// outputValidateJSON outputs the validation result as JSON.
func outputValidateJSON(formatter *OutputFormatter, result ValidationResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Valid {
		response.Status = "error"
		for _, r := range result.Profiles {
			if !r.Valid {
				response.Error = &CLIError{
					Code:    ErrCodeProfile,
					Message: fmt.Sprintf("profile %s: %s", r.Profile, r.Error),
				}
				break
			}
		}
	}

	if err := encodeResponse(formatter.Writer, response); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// outputValidateText outputs the validation result as text.
func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	for _, r := range result.Profiles {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s\n", r.Profile)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Profile)
		fmt.Fprintf(w, "  %s\n", r.Error)
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ All profiles valid")
		return nil
	}

	fmt.Fprintln(w, "✗ Validation failed")
	return NewExitError(ExitFailure, "validation failed")
}
