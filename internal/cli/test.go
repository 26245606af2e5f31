package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Loader loaderFlags
}

// ScriptReport holds the outcome of a single script run.
type ScriptReport struct {
	Script   string               `json:"script"`
	Pass     bool                 `json:"pass"`
	Steps    []harness.StepResult `json:"steps,omitempty"`
	Failures []string             `json:"failures,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scripts []ScriptReport `json:"scripts"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Total   int            `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <script.yaml>...",
		Short: "Run harness scripts against simulated instruments",
		Long: `Run harness scripts against the simulators their profiles describe.

Each script names a profile; a fresh simulator is built per script,
seeded from the script's seed, and driven step by step. Expectation
mismatches are collected per step and do not stop the run, so the
report shows the full transcript of a drifting script.

Exit codes:
  0 - All scripts passed
  1 - One or more scripts failed
  2 - Command error (script not found, profile missing, etc.)

Examples:
  virtbench test scripts/smoke.yaml
  virtbench test scripts/*.yaml --profiles ./profiles
  virtbench test scripts/smoke.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	opts.Loader.register(cmd)

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
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

	result := TestResult{
		Scripts: make([]ScriptReport, 0, len(paths)),
		Total:   len(paths),
	}

	for _, path := range paths {
		script, err := harness.LoadScript(path)
		if err != nil {
			if isNotExist(err) {
				return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("script not found: %s", path))
			}
			return commandError(formatter, ErrCodeScript, err.Error())
		}

		formatter.VerboseLog("Running script: %s (profile %s)", script.Name, script.Profile)

		run, err := harness.RunProfile(cmd.Context(), loader, script)
		if err != nil {
			if isNotExist(err) {
				return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("profile not found: %s", script.Profile))
			}
			return commandError(formatter, ErrCodeScript, fmt.Sprintf("%s: %v", script.Name, err))
		}

		report := ScriptReport{
			Script:   script.Name,
			Pass:     run.Passed(),
			Steps:    run.Steps,
			Failures: run.Failures(),
		}
		result.Scripts = append(result.Scripts, report)

		if report.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScript,
			Message: fmt.Sprintf("%d script(s) failed", result.Failed),
		}
	}

	if err := encodeResponse(formatter.Writer, response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	for _, report := range result.Scripts {
		if report.Pass {
			fmt.Fprintf(w, "✓ %s (%d steps)\n", report.Script, len(report.Steps))
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", report.Script)
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d script(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scripts passed")
	return nil
}
