package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/macro"
	"github.com/roach88/cardcheck/internal/store"
)

// PreprocessOptions holds flags for the preprocess command.
type PreprocessOptions struct {
	*RootOptions
	Output   string
	Token    string
	Header   bool
	Index    bool
	Database string
}

// PreprocessResult summarizes one preprocessed file.
type PreprocessResult struct {
	Source  string       `json:"source"`
	Output  string       `json:"output"`
	Digest  string       `json:"digest"`
	Lines   int          `json:"lines"`
	Sites   int          `json:"sites"`
	Aliased []macro.Site `json:"aliased,omitempty"`
	Indexed bool         `json:"indexed"`
}

func (r PreprocessResult) String() string {
	s := fmt.Sprintf("%s -> %s: %d lines, %d sites", r.Source, r.Output, r.Lines, r.Sites)
	if len(r.Aliased) > 0 {
		s += fmt.Sprintf(", %d aliased", len(r.Aliased))
	}
	if r.Indexed {
		s += " (indexed)"
	}
	return s
}

// NewPreprocessCommand creates the preprocess command.
func NewPreprocessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PreprocessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "preprocess [file]",
		Short: "Replace line placeholders with line numbers",
		Long: `Copy a source file, replacing every line placeholder with the number of
lines read before it, so each assertion carries its own line.

Without -o the result goes to stdout; without a file, stdin is read. With
--index the placeholder sites are recorded in the store so status words can
be decoded back to this file later.

Typical use from a go:generate directive:
  //go:generate cardcheck preprocess --header -o checks_gen.go checks.go.in

Examples:
  cardcheck preprocess checks.go.in
  cardcheck preprocess --header -o checks_gen.go --index checks.go.in
  cardcheck preprocess --token @LINE@ < input.txt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return runPreprocess(cmd.Context(), opts, input, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "placeholder token (default from config, "+macro.DefaultToken+")")
	cmd.Flags().BoolVar(&opts.Header, "header", false, "write a generated-code header (default from config)")
	cmd.Flags().BoolVar(&opts.Index, "index", false, "record placeholder sites in the store")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite store (default from config)")

	return cmd
}

func runPreprocess(ctx context.Context, opts *PreprocessOptions, input string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.cfg()
	logger := opts.logger()
	formatter := opts.formatter(cmd)

	token := opts.Token
	if token == "" {
		token = cfg.Preprocess.Token
	}
	header := opts.Header
	if !cmd.Flags().Changed("header") {
		header = cfg.Preprocess.Header
	}
	if opts.Index && (input == "" || input == "-") {
		return NewExitError(ExitCommandError, "--index needs a named input file")
	}

	var src io.Reader = cmd.InOrStdin()
	source := ""
	if input != "" && input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		src = f
		source = filepath.Base(input)
	}

	macroOpts := macro.Options{Token: token, Source: source, Header: header}
	var (
		res *macro.Result
		err error
	)
	if opts.Output == "" {
		res, err = macro.Preprocess(cmd.OutOrStdout(), src, macroOpts)
	} else {
		res, err = writeAtomically(opts.Output, func(w io.Writer) (*macro.Result, error) {
			return macro.Preprocess(w, src, macroOpts)
		})
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "preprocess failed", err)
	}

	for _, site := range res.Aliased() {
		logger.Warn("placeholder value exceeds the assertion block and aliases a lower line",
			"source", source, "line", site.Line, "value", site.Value)
	}
	for _, site := range res.Overflowing() {
		logger.Warn("placeholder value does not fit a status.Line; the output will not compile",
			"source", source, "line", site.Line, "value", site.Value)
	}

	result := PreprocessResult{
		Source:  displayName(input),
		Output:  displayName(opts.Output),
		Digest:  res.Digest,
		Lines:   res.Lines,
		Sites:   len(res.Sites),
		Aliased: res.Aliased(),
	}

	if opts.Index {
		// Index under the path as given so decode can tell same-named files apart.
		res.Source = input
		if err := indexResult(ctx, opts.storePath(opts.Database), res); err != nil {
			return err
		}
		result.Indexed = true
		logger.Info("sites indexed", "source", store.NormalizePath(input), "sites", len(res.Sites))
	}

	// The summary would corrupt output written to stdout.
	if opts.Output == "" {
		return nil
	}
	return formatter.Success(result)
}

// writeAtomically writes to a temporary file next to path and renames it
// into place once fn succeeds, so a failed run never leaves a partial file.
func writeAtomically(path string, fn func(io.Writer) (*macro.Result, error)) (*macro.Result, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	res, err := fn(tmp)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return res, nil
}

func indexResult(ctx context.Context, dbPath string, res *macro.Result) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	if err := st.IndexSource(ctx, res); err != nil {
		return WrapExitError(ExitCommandError, "failed to index sites", err)
	}
	return nil
}

// storePath returns the flag value, or the configured store.
func (o *RootOptions) storePath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.cfg().Store.Path
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "-"
	}
	return path
}
