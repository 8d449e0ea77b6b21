package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/status"
	"github.com/roach88/cardcheck/internal/store"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Database string
	Sources  []string
}

// DecodedWord is one status word and the sites that may have thrown it.
type DecodedWord struct {
	SW      string          `json:"sw"`
	Meaning string          `json:"meaning"`
	Line    *int            `json:"line,omitempty"`
	Sites   []store.SiteRef `json:"sites,omitempty"`

	// Ambiguous is set when more than one site throws the word.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <sw>...",
		Short: "Map status words back to source lines",
		Long: `Decode status words against the line index built by
"cardcheck preprocess --index".

An assertion status word (62xx) is listed with every indexed site that throws
it. Lines 1024 apart share a word, so a decode may be ambiguous; --source
narrows the search to the named files. Other status words are described.

Exit codes:
  0 - Every assertion status word was found in the index
  1 - An assertion status word matched no indexed site
  2 - Command error (bad status word, missing store)

Examples:
  cardcheck decode 6212
  cardcheck decode 6212 6225 --source internal/applets/memclient/checks.go.in
  cardcheck decode 6A82 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (default from config)")
	cmd.Flags().StringSliceVar(&opts.Sources, "source", nil, "restrict decoding to these sources")

	return cmd
}

func runDecode(ctx context.Context, opts *DecodeOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	words := make([]status.Word, 0, len(args))
	for _, arg := range args {
		w, err := status.Parse(arg)
		if err != nil {
			_ = formatter.Error(ErrCodeBadStatus, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid status word", err)
		}
		words = append(words, w)
	}

	dbPath := opts.storePath(opts.Database)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("store not found: %s (run preprocess --index first)", dbPath))
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	decoded := make([]DecodedWord, 0, len(words))
	unresolved := 0
	for _, w := range words {
		d := DecodedWord{SW: w.String(), Meaning: w.Describe()}
		if line, ok := w.AssertionLine(); ok {
			n := int(line)
			d.Line = &n
			sites, err := st.LookupSites(ctx, w, opts.Sources...)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to query sites", err)
			}
			d.Sites = sites
			d.Ambiguous = len(sites) > 1
			if len(sites) == 0 {
				unresolved++
			}
		}
		decoded = append(decoded, d)
	}

	if opts.Format == "json" {
		if err := formatter.Success(decoded); err != nil {
			return err
		}
	} else {
		writeDecodedText(cmd, decoded)
	}

	if unresolved > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d status word(s) matched no indexed site", unresolved))
	}
	return nil
}

func writeDecodedText(cmd *cobra.Command, decoded []DecodedWord) {
	w := cmd.OutOrStdout()
	for _, d := range decoded {
		fmt.Fprintf(w, "%s  %s\n", d.SW, d.Meaning)
		if d.Line == nil {
			continue
		}
		if len(d.Sites) == 0 {
			fmt.Fprintln(w, "  no indexed site")
			continue
		}
		if d.Ambiguous {
			fmt.Fprintf(w, "  ambiguous: %d sites\n", len(d.Sites))
		}
		for _, s := range d.Sites {
			fmt.Fprintf(w, "  %s  %s\n", s.Location(), strings.TrimSpace(s.Text))
		}
	}
}
