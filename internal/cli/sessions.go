package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/virtbench/virtbench/internal/archive"
	"github.com/virtbench/virtbench/internal/session"
)

// SessionsOptions holds flags shared by the sessions subcommands.
type SessionsOptions struct {
	*RootOptions
	Archive string
}

// NewSessionsCommand creates the sessions command group.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse the session archive",
		Long: `Browse and maintain the SQLite session archive.

The archive stores recorded sessions durably: list filters them by
alias, profile, or age; export writes one back out as a session YAML
file replay can load; import files recorded sessions into the
archive; delete removes a session and its entries.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Archive, "archive", "", "archive database path (default $VIRTBENCH_ARCHIVE)")

	cmd.AddCommand(newSessionsListCommand(opts))
	cmd.AddCommand(newSessionsExportCommand(opts))
	cmd.AddCommand(newSessionsImportCommand(opts))
	cmd.AddCommand(newSessionsDeleteCommand(opts))

	return cmd
}

// openArchive resolves the archive path from the flag or environment
// and opens it.
func openArchive(opts *SessionsOptions, formatter *OutputFormatter) (*archive.Archive, error) {
	path := opts.Archive
	if path == "" {
		env, err := ParseEnv()
		if err != nil {
			return nil, commandError(formatter, ErrCodeGeneric, err.Error())
		}
		path = env.Archive
	}
	if path == "" {
		return nil, commandError(formatter, ErrCodeArchive, "no archive path: set --archive or VIRTBENCH_ARCHIVE")
	}

	a, err := archive.Open(path)
	if err != nil {
		return nil, commandError(formatter, ErrCodeArchive, fmt.Sprintf("open archive: %v", err))
	}
	return a, nil
}

// newSessionsListCommand creates the sessions list subcommand.
func newSessionsListCommand(opts *SessionsOptions) *cobra.Command {
	var (
		alias       string
		profileName string
		since       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Long: `List archived sessions in recording order.

Filters combine: --alias and --profile match exactly, --since keeps
sessions recorded at or after the given RFC 3339 time.

Examples:
  virtbench sessions list --archive bench.db
  virtbench sessions list --alias dmm-1 --since 2026-03-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(opts, alias, profileName, since, cmd)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "only sessions recorded under this alias")
	cmd.Flags().StringVar(&profileName, "profile", "", "only sessions recorded from this profile")
	cmd.Flags().StringVar(&since, "since", "", "only sessions recorded at or after this RFC 3339 time")

	return cmd
}

func runSessionsList(opts *SessionsOptions, alias, profileName, since string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter := archive.Filter{Alias: alias, Profile: profileName}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --since value: %v", err))
		}
		filter.Since = t
	}

	a, err := openArchive(opts, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	metas, err := a.ListSessions(cmd.Context(), filter)
	if err != nil {
		return commandError(formatter, ErrCodeArchive, err.Error())
	}

	if opts.Format == "json" {
		return formatter.Success(metas)
	}

	w := formatter.Writer
	if len(metas) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	for _, m := range metas {
		fmt.Fprintf(w, "%s  %s  %s  %s  %d entries\n",
			m.ID, m.CreatedAt.Format(time.RFC3339), m.Alias, displayProfile(m.Profile), m.Entries)
	}
	fmt.Fprintf(w, "\n%d session(s)\n", len(metas))
	return nil
}

// displayProfile substitutes a placeholder for sessions recorded without
// a profile so the list columns stay readable.
func displayProfile(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

// newSessionsExportCommand creates the sessions export subcommand.
func newSessionsExportCommand(opts *SessionsOptions) *cobra.Command {
	var (
		out   string
		alias string
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export an archived session to a session file",
		Long: `Export one archived session to a session YAML file.

The exported file is what the replay backend loads. When the output
file already exists the session is merged in under its alias, so one
file can collect the sessions of a whole bench.

Examples:
  virtbench sessions export 0198a3... --out bench.yaml
  virtbench sessions export 0198a3... --out bench.yaml --alias dmm-2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsExport(opts, args[0], out, alias, cmd)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output session file (required)")
	_ = cmd.MarkFlagRequired("out")
	cmd.Flags().StringVar(&alias, "alias", "", "alias to export under (default the recorded alias)")

	return cmd
}

func runSessionsExport(opts *SessionsOptions, id, out, alias string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	a, err := openArchive(opts, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	meta, s, err := a.LoadSession(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("session not found: %s", id))
		}
		return commandError(formatter, ErrCodeArchive, err.Error())
	}

	if alias == "" {
		alias = meta.Alias
	}

	f, err := session.LoadFile(out)
	if err != nil {
		if !isNotExist(err) {
			return commandError(formatter, ErrCodeSession, err.Error())
		}
		f = session.File{}
	}
	f[alias] = s

	if err := session.WriteFile(out, f); err != nil {
		return commandError(formatter, ErrCodeSession, err.Error())
	}

	return formatter.Success(fmt.Sprintf("Exported session %s to %s as %q (%d entries)", id, out, alias, len(s.Log)))
}

// newSessionsImportCommand creates the sessions import subcommand.
func newSessionsImportCommand(opts *SessionsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <session-file>...",
		Short: "Import session files into the archive",
		Long: `Import every session in the named files into the archive.

Sessions are stored under their recorded IDs; importing the same file
twice is a no-op. Hand-written sessions without an ID are rejected,
since the archive keys on it.

Examples:
  virtbench sessions import bench.yaml
  virtbench sessions import runs/*.yaml --archive bench.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsImport(opts, args, cmd)
		},
	}

	return cmd
}

func runSessionsImport(opts *SessionsOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	a, err := openArchive(opts, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	imported := 0

	for _, path := range paths {
		f, err := session.LoadFile(path)
		if err != nil {
			if isNotExist(err) {
				return commandError(formatter, ErrCodeNotFound, fmt.Sprintf("session file not found: %s", path))
			}
			return commandError(formatter, ErrCodeSession, err.Error())
		}

		for alias, s := range f {
			formatter.VerboseLog("Importing session %s (alias %s)", s.ID, alias)
			if err := a.SaveSession(cmd.Context(), alias, s, now); err != nil {
				return commandError(formatter, ErrCodeArchive,
					fmt.Sprintf("%s: session %q: %v", path, alias, err))
			}
			imported++
		}
	}

	return formatter.Success(fmt.Sprintf("Imported %d session(s)", imported))
}

// newSessionsDeleteCommand creates the sessions delete subcommand.
func newSessionsDeleteCommand(opts *SessionsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete an archived session",
		Long: `Delete one session and its entries from the archive.

Examples:
  virtbench sessions delete 0198a3... --archive bench.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(opts, args[0], cmd)
		},
	}

	return cmd
}

func runSessionsDelete(opts *SessionsOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	a, err := openArchive(opts, formatter)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.DeleteSession(cmd.Context(), id); err != nil {
		return commandError(formatter, ErrCodeArchive, err.Error())
	}

	return formatter.Success(fmt.Sprintf("Deleted session %s", id))
}
