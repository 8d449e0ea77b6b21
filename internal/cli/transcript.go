package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/store"
)

// TranscriptOptions holds flags for the transcript command.
type TranscriptOptions struct {
	*RootOptions
	Database string
}

// TranscriptEntry is one exchange of a recorded run.
type TranscriptEntry struct {
	Seq     int64  `json:"seq"`
	Step    int    `json:"step"`
	Command string `json:"command"`
	Data    string `json:"data,omitempty"`
	SW      string `json:"sw"`
	Meaning string `json:"meaning"`
	Cause   string `json:"cause,omitempty"`
}

// TranscriptResult is the recorded exchanges of one run.
type TranscriptResult struct {
	RunID     string            `json:"run_id"`
	Exchanges []TranscriptEntry `json:"exchanges"`
}

// NewTranscriptCommand creates the transcript command.
func NewTranscriptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranscriptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transcript [run-id]",
		Short: "Show recorded runs",
		Long: `List the runs recorded by "cardcheck run", or show the exchanges of one
run in sequence order.

Examples:
  cardcheck transcript
  cardcheck transcript 01928c4e-7f1a-7c3e-9a55-3f2d5c0b8e11 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTranscript(cmd.Context(), opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (default from config)")

	return cmd
}

func runTranscript(ctx context.Context, opts *TranscriptOptions, runID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dbPath := opts.storePath(opts.Database)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("store not found: %s", dbPath))
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.Runs(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %-32s %s\n", r.ID, r.Name, r.Transport)
		}
		return nil
	}

	exchanges, err := st.ReadTranscript(ctx, runID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read transcript", err)
	}
	if len(exchanges) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no exchanges recorded for run %s", runID))
	}

	result := TranscriptResult{RunID: runID, Exchanges: make([]TranscriptEntry, 0, len(exchanges))}
	for _, ex := range exchanges {
		entry := TranscriptEntry{
			Seq:     ex.Seq,
			Step:    ex.Step,
			Command: strings.ToUpper(hex.EncodeToString(ex.Command)),
			SW:      ex.SW.String(),
			Meaning: ex.SW.Describe(),
			Cause:   ex.Cause,
		}
		if resp, err := card.ParseResponse(ex.Response); err == nil {
			entry.Data = strings.ToUpper(hex.EncodeToString(resp.Data))
		}
		result.Exchanges = append(result.Exchanges, entry)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", runID)
	for _, e := range result.Exchanges {
		fmt.Fprintf(w, "  [%d] step %d  %s -> %s %s\n", e.Seq, e.Step, e.Command, e.SW, e.Meaning)
		if e.Data != "" {
			fmt.Fprintf(w, "      data %s\n", e.Data)
		}
		if e.Cause != "" {
			fmt.Fprintf(w, "      cause %s\n", e.Cause)
		}
	}
	return nil
}
