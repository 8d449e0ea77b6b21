package harness

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/macro"
	"github.com/roach88/cardcheck/internal/profile"
	"github.com/roach88/cardcheck/internal/status"
	"github.com/roach88/cardcheck/internal/store"
	"github.com/roach88/cardcheck/internal/testutil"
	"github.com/roach88/cardcheck/internal/transport"
)

// RunIDGenerator names runs in the transcript store.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable run IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Options configures Run. The zero value runs against a fresh local card with
// a throwaway in-memory store.
type Options struct {
	// Transport reaches the card. When nil the scenario's profile is built
	// into a local platform driven by a deterministic clock.
	Transport transport.Transport

	// Store receives the site index and the transcript. When nil an
	// in-memory store is opened and closed around the run.
	Store *store.Store

	// RunIDs names the run; UUIDv7Generator when nil.
	RunIDs RunIDGenerator

	// Token is the placeholder the sources were written with.
	Token string

	Logger *slog.Logger
}

// Harness executes the steps of one scenario.
type Harness struct {
	scenario *Scenario
	profile  *profile.Profile
	card     transport.Transport
	store    *store.Store
	runID    string
	logger   *slog.Logger
}

// Run executes a scenario and returns its result. Failed expectations and
// assertions make the result fail; the returned error is reserved for runs
// that could not be carried out at all.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	prof := profile.Default()
	if scenario.Profile != "" {
		p, err := profile.Load(scenario.Profile)
		if err != nil {
			return nil, err
		}
		prof = p
	}

	st := opts.Store
	if st == nil {
		s, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer s.Close()
		st = s
	}

	if err := indexSources(ctx, st, scenario, opts.Token); err != nil {
		return nil, err
	}

	tr := opts.Transport
	if tr == nil {
		plat, err := prof.Build(
			card.WithSequencer(testutil.NewDeterministicClock()),
			card.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("build card: %w", err)
		}
		tr = transport.NewLocal(plat)
		defer tr.Close()
	}

	gen := opts.RunIDs
	if gen == nil {
		gen = UUIDv7Generator{}
	}

	h := &Harness{
		scenario: scenario,
		profile:  prof,
		card:     tr,
		store:    st,
		runID:    gen.Generate(),
		logger:   logger.With("scenario", scenario.Name),
	}
	if err := st.BeginRun(ctx, store.Run{ID: h.runID, Name: scenario.Name, Transport: tr.Name()}); err != nil {
		return nil, err
	}

	result := NewResult(h.runID)
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, err := range EvaluateAssertions(result.Trace, scenario.Assertions) {
		result.AddError(err)
	}

	h.logger.Info("scenario completed", "run_id", h.runID, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// indexSources preprocesses every source of the scenario and records its
// sites under the name written in the scenario.
func indexSources(ctx context.Context, st *store.Store, scenario *Scenario, token string) error {
	for _, src := range scenario.Sources {
		f, err := os.Open(scenario.SourcePath(src))
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		res, err := macro.Preprocess(io.Discard, f, macro.Options{Token: token, Source: src})
		f.Close()
		if err != nil {
			return fmt.Errorf("preprocess %s: %w", src, err)
		}
		if err := st.IndexSource(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	var (
		kind    string
		command []byte
		err     error
	)
	switch {
	case step.Reset:
		if err := h.card.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		result.Trace = append(result.Trace, TraceEvent{Step: i, Kind: EventReset})
		h.logger.Debug("card reset", "step", i)
		return nil
	case step.Select != "":
		kind = EventSelect
		aid, err := h.resolve(step.Select)
		if err != nil {
			return err
		}
		command = card.SelectCommand(aid).Bytes()
	default:
		kind = EventSend
		if command, err = parseHex(step.Send); err != nil {
			return err
		}
	}

	resp, err := h.card.Transmit(ctx, command)
	if err != nil {
		return fmt.Errorf("transmit: %w", err)
	}

	event := TraceEvent{
		Step:    i,
		Kind:    kind,
		Seq:     resp.Seq,
		Command: strings.ToUpper(hex.EncodeToString(command)),
		Data:    strings.ToUpper(hex.EncodeToString(resp.Data)),
		SW:      resp.SW.String(),
		Meaning: resp.SW.Describe(),
	}
	if resp.Cause != nil {
		event.Cause = resp.Cause.Error()
	}
	if resp.SW.IsAssertion() {
		if event.Sites, err = h.decode(ctx, resp.SW); err != nil {
			return err
		}
	}

	if err := h.store.WriteExchange(ctx, store.Exchange{
		RunID:    h.runID,
		Seq:      resp.Seq,
		Step:     i,
		Command:  command,
		Response: resp.Bytes(),
		SW:       resp.SW,
		Cause:    event.Cause,
	}); err != nil {
		return err
	}
	result.Trace = append(result.Trace, event)

	if step.Expect != nil {
		for _, err := range checkExpect(i, step.Expect, event) {
			result.AddError(err)
		}
	}

	h.logger.Info("step completed",
		"step", i,
		"kind", kind,
		"seq", resp.Seq,
		"sw", event.SW,
	)
	return nil
}

// resolve maps a select target to an AID: a profile component name first,
// then an AID in hex.
func (h *Harness) resolve(target string) (card.AID, error) {
	if a, ok := h.profile.Lookup(target); ok {
		return a.AID, nil
	}
	aid, err := card.ParseAID(target)
	if err != nil {
		return "", fmt.Errorf("select %q: not a profile component or AID: %w", target, err)
	}
	return aid, nil
}

// decode finds the sites that throw sw. With no scenario sources the whole
// index is searched.
func (h *Harness) decode(ctx context.Context, sw status.Word) ([]Site, error) {
	refs, err := h.store.LookupSites(ctx, sw, h.scenario.Sources...)
	if err != nil {
		return nil, err
	}
	sites := make([]Site, 0, len(refs))
	for _, ref := range refs {
		sites = append(sites, Site{Location: ref.Location(), Text: ref.Text})
	}
	return sites, nil
}

// checkExpect compares one response with its expectation.
func checkExpect(i int, expect *Expect, event TraceEvent) []error {
	var errs []error

	// Both parse; validateStep has already checked them.
	want, _ := status.Parse(expect.SW)
	if want.String() != event.SW {
		errs = append(errs, &StepError{
			Step:     i,
			Expected: "sw " + want.String(),
			Actual:   fmt.Sprintf("sw %s (%s)", event.SW, event.Meaning),
		})
	}

	if expect.Data != nil {
		data, _ := parseHex(*expect.Data)
		if w := strings.ToUpper(hex.EncodeToString(data)); w != event.Data {
			errs = append(errs, &StepError{
				Step:     i,
				Expected: fmt.Sprintf("data %q", w),
				Actual:   fmt.Sprintf("data %q", event.Data),
			})
		}
	}

	if expect.Site != "" && !siteMatches(event.Sites, expect.Site) {
		errs = append(errs, &StepError{
			Step:     i,
			Expected: "site " + expect.Site,
			Actual:   "sites " + formatSites(event.Sites),
		})
	}
	return errs
}

// siteMatches reports whether one of sites is at location. The file part of
// location matches a trailing path of the site's file; the line, when
// given, must be equal.
func siteMatches(sites []Site, location string) bool {
	wantFile, wantLine, hasLine := splitLocation(location)
	for _, s := range sites {
		file, line, ok := splitLocation(s.Location)
		if !ok || (hasLine && line != wantLine) {
			continue
		}
		if file == wantFile || strings.HasSuffix(file, "/"+wantFile) {
			return true
		}
	}
	return false
}

// splitLocation splits "file:line". ok is false when there is no line.
func splitLocation(location string) (file string, line int, ok bool) {
	i := strings.LastIndex(location, ":")
	if i < 0 {
		return location, 0, false
	}
	n, err := strconv.Atoi(location[i+1:])
	if err != nil {
		return location, 0, false
	}
	return location[:i], n, true
}

func formatSites(sites []Site) string {
	if len(sites) == 0 {
		return "none"
	}
	locs := make([]string, len(sites))
	for i, s := range sites {
		locs[i] = s.Location
	}
	return strings.Join(locs, ", ")
}

var errOddHex = errors.New("odd number of hex digits")

// parseHex decodes hex with optional spaces. An empty string is no bytes.
func parseHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%q: %w", s, errOddHex)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	return b, nil
}
