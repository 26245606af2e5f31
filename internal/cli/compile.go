package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/sim"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Loader loaderFlags
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <profile>",
		Short: "Print a profile's compiled dispatch table",
		Long: `Compile a profile and print the resulting dispatch surface.

Shows the exact-match keys in canonical form, the pattern rules in the
order the simulator will try them, and the error rules in evaluation
order. Use this to see why one key shadows another: exact entries win
over patterns, and more specific patterns are tried first.

Exit codes:
  0 - Profile compiled
  1 - Profile invalid
  2 - Command error (profile not found, etc.)

Examples:
  virtbench compile dmm
  virtbench compile keysight/34465a --profiles ./profiles
  virtbench compile dmm --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.Loader.register(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, name string, cmd *cobra.Command) error {
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

	p, err := loader.Load(name)
	if err != nil {
		return profileError(formatter, name, err)
	}

	info, err := sim.Describe(p)
	if err != nil {
		return profileError(formatter, name, err)
	}

	if opts.Format == "json" {
		return formatter.Success(info)
	}
	return outputCompileText(formatter, name, info)
}

// outputCompileText renders the table summary as text.
func outputCompileText(formatter *OutputFormatter, name string, info *sim.TableInfo) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Profile: %s\n", name)
	fmt.Fprintf(w, "Exact entries: %d\n", len(info.ExactKeys))
	for _, key := range info.ExactKeys {
		fmt.Fprintf(w, "  %s\n", key)
	}

	if len(info.Patterns) > 0 {
		fmt.Fprintf(w, "Pattern rules (match order):\n")
		for _, p := range info.Patterns {
			fmt.Fprintf(w, "  %s  (%d wildcard(s))\n", p.Key, p.Wildcards)
		}
	}

	if len(info.Errors) > 0 {
		fmt.Fprintf(w, "Error rules:\n")
		for _, e := range info.Errors {
			if e.Condition != "" {
				fmt.Fprintf(w, "  [%d] %s  on %s  when %s\n", e.Code, e.Message, e.Pattern, e.Condition)
			} else {
				fmt.Fprintf(w, "  [%d] %s  on %s\n", e.Code, e.Message, e.Pattern)
			}
		}
	}

	return nil
}

// profileError reports a profile load or compile failure. Missing files
// are command errors; everything else is a validation failure.
func profileError(formatter *OutputFormatter, name string, err error) error {
	if isNotExist(err) {
		return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("profile not found: %s", name))
	}
	_ = formatter.Error(ErrCodeProfile, err.Error(), nil)
	return NewExitError(ExitFailure, fmt.Sprintf("profile %s invalid", name))
}
