package macro

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/roach88/cardcheck/internal/linesrc"
	"github.com/roach88/cardcheck/internal/status"
)

// Options configures Preprocess.
type Options struct {
	// Token is the placeholder; DefaultToken when empty.
	Token string

	// Source names the input in the header and the result.
	Source string

	// Header, when set, writes GeneratedHeader(Source) and a blank line before
	// the output.
	// Line values always refer to the input, so the header does not shift them.
	Header bool
}

// Result summarizes one preprocessing pass.
type Result struct {
	Source string `json:"source"`
	Digest string `json:"digest"` // hex SHA-256 of the input
	Lines  int    `json:"lines"`
	Sites  []Site `json:"sites"`
}

// Aliased returns the sites whose value does not fit the assertion block and
// therefore shares a status word with a lower line.
func (r *Result) Aliased() []Site {
	var out []Site
	for _, s := range r.Sites {
		if s.Value > status.LineMask {
			out = append(out, s)
		}
	}
	return out
}

// Overflowing returns the sites whose value exceeds the largest status.Line.
// Their literals do not compile where a status.Line is expected, so card
// sources are limited to 65536 lines.
func (r *Result) Overflowing() []Site {
	var out []Site
	for _, s := range r.Sites {
		if s.Value > math.MaxUint16 {
			out = append(out, s)
		}
	}
	return out
}

// GeneratedHeader returns the generated-code marker line for source.
func GeneratedHeader(source string) string {
	if source == "" {
		return "// Code generated by cardcheck preprocess; DO NOT EDIT."
	}
	return fmt.Sprintf("// Code generated by cardcheck preprocess from %s; DO NOT EDIT.", source)
}

// Preprocess copies src to w line by line, substituting the placeholder, and
// returns the sites it replaced. Output lines end in "\n".
//
// Read failures are returned as errors, never folded into end of input.
func Preprocess(w io.Writer, src io.Reader, opts Options) (*Result, error) {
	hash := sha256.New()
	result := &Result{Source: opts.Source, Sites: []Site{}}

	r := NewReader(
		linesrc.NewReader(io.TeeReader(src, hash)),
		WithToken(opts.Token),
		WithSiteRecorder(func(s Site) { result.Sites = append(result.Sites, s) }),
	)

	bw := bufio.NewWriter(w)
	if opts.Header {
		if _, err := fmt.Fprintf(bw, "%s\n\n", GeneratedHeader(opts.Source)); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s line %d: %w", sourceName(opts.Source), r.LineNumber()+1, err)
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return nil, fmt.Errorf("failed to write line %d: %w", r.LineNumber(), err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush output: %w", err)
	}

	result.Lines = r.LineNumber()
	result.Digest = hex.EncodeToString(hash.Sum(nil))
	return result, nil
}

func sourceName(s string) string {
	if s == "" {
		return "input"
	}
	return s
}
