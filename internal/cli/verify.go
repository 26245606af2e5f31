package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/session"
	"github.com/virtbench/virtbench/internal/sim"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Loader  loaderFlags
	Session string // session file path
	Alias   string // instrument alias within the file
	Profile string // profile override
	Seed    uint64 // simulator seed
}

// Divergence is one recorded entry the simulator answered differently.
type Divergence struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	Command  string `json:"command"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VerifyResult holds the verification outcome for one session.
type VerifyResult struct {
	Session     string       `json:"session,omitempty"`
	Alias       string       `json:"alias"`
	Profile     string       `json:"profile"`
	Entries     int          `json:"entries"`
	Divergences []Divergence `json:"divergences,omitempty"`
	Match       bool         `json:"match"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a recorded session against its profile",
		Long: `Drive a profile simulator with a recorded session and report divergence.

The recorded commands are sent to a fresh simulator built from the
session's profile (or --profile), in order, and each recorded response
is compared with what the simulator produced. A clean run means the
profile still describes the instrument the session was captured from;
divergences show where the profile and the recording disagree, entry
by entry.

Dynamic responses depend on the simulator seed. Pass the seed the
session was recorded with, or expect those entries to diverge.

Exit codes:
  0 - Session matches the profile
  1 - Divergences found
  2 - Command error (session file not found, unknown alias, etc.)

Examples:
  virtbench verify --session bench.yaml --alias dmm-1
  virtbench verify --session bench.yaml --alias dmm-1 --profile dmm --seed 7
  virtbench verify --session bench.yaml --alias dmm-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session file to verify (required)")
	_ = cmd.MarkFlagRequired("session")
	cmd.Flags().StringVar(&opts.Alias, "alias", "", "instrument alias within the session file (required)")
	_ = cmd.MarkFlagRequired("alias")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "profile to verify against (default the session's recorded profile)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "simulator random seed")
	opts.Loader.register(cmd)

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	f, err := session.LoadFile(opts.Session)
	if err != nil {
		if isNotExist(err) {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("session file not found: %s", opts.Session))
		}
		return commandError(formatter, ErrCodeSession, err.Error())
	}

	s, err := f.Session(opts.Alias)
	if err != nil {
		return commandError(formatter, ErrCodeSession, err.Error())
	}

	profileName := opts.Profile
	if profileName == "" {
		profileName = s.Profile
	}
	if profileName == "" {
		return commandError(formatter, ErrCodeSession,
			fmt.Sprintf("session %q records no profile; pass --profile", opts.Alias))
	}

	loader, err := newLoader(opts.Loader)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	p, err := loader.Load(profileName)
	if err != nil {
		if isNotExist(err) {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("profile not found: %s", profileName))
		}
		return commandError(formatter, ErrCodeProfile, err.Error())
	}

	b, err := sim.New(p,
		sim.WithRandomSeed(opts.Seed),
		sim.WithLogger(opts.logger()),
	)
	if err != nil {
		return commandError(formatter, ErrCodeProfile, err.Error())
	}
	defer b.Close()

	ctx := cmd.Context()
	if err := b.Connect(ctx); err != nil {
		return commandError(formatter, ErrCodeProfile, err.Error())
	}
	defer b.Disconnect(ctx)

	result := verifySession(ctx, b, s)
	result.Alias = opts.Alias
	result.Profile = profileName

	if opts.Format == "json" {
		return outputVerifyJSON(formatter, result)
	}
	return outputVerifyText(formatter, result)
}

// verifySession replays the recorded commands against the simulator and
// collects every entry whose outcome differs from the recording.
func verifySession(ctx context.Context, b *sim.Backend, s session.Session) VerifyResult {
	result := VerifyResult{
		Session: s.ID,
		Entries: len(s.Log),
		Match:   true,
	}

	for i, e := range s.Log {
		var got string
		var err error

		switch e.Kind {
		case session.KindWrite:
			err = b.Write(ctx, e.Command)
		case session.KindQuery:
			got, err = b.Query(ctx, e.Command)
		case session.KindQueryRaw:
			var raw []byte
			raw, err = b.QueryRaw(ctx, e.Command)
			got = string(raw)
		}

		if err != nil {
			result.Divergences = append(result.Divergences, Divergence{
				Index:   i,
				Kind:    string(e.Kind),
				Command: e.Command,
				Error:   err.Error(),
			})
			result.Match = false
			continue
		}

		if e.Kind.IsQuery() && got != e.Response {
			result.Divergences = append(result.Divergences, Divergence{
				Index:    i,
				Kind:     string(e.Kind),
				Command:  e.Command,
				Expected: e.Response,
				Got:      got,
			})
			result.Match = false
		}
	}

	return result
}

// outputVerifyJSON outputs the verification result as JSON.
func outputVerifyJSON(formatter *OutputFormatter, result VerifyResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Match {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeSession,
			Message: fmt.Sprintf("%d divergence(s)", len(result.Divergences)),
		}
	}

	if err := encodeResponse(formatter.Writer, response); err != nil {
		return err
	}

	if !result.Match {
		return NewExitError(ExitFailure, fmt.Sprintf("%d divergence(s)", len(result.Divergences)))
	}
	return nil
}

// outputVerifyText outputs the verification result as text.
func outputVerifyText(formatter *OutputFormatter, result VerifyResult) error {
	w := formatter.Writer

	if result.Match {
		fmt.Fprintf(w, "✓ %s: %d entries match profile %s\n", result.Alias, result.Entries, result.Profile)
		return nil
	}

	fmt.Fprintf(w, "✗ %s: %d divergence(s) against profile %s\n", result.Alias, len(result.Divergences), result.Profile)
	for _, d := range result.Divergences {
		if d.Error != "" {
			fmt.Fprintf(w, "  [%d] %s %s error: %s\n", d.Index, d.Kind, d.Command, d.Error)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s %s expected %q, got %q\n", d.Index, d.Kind, d.Command, d.Expected, d.Got)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("%d divergence(s)", len(result.Divergences)))
}
