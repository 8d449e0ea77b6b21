package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cardcheck/internal/status"
)

// AssertionError is returned when an assertion fails.
// It carries the trace so the failure can be read in context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		if event.Kind == EventReset {
			fmt.Fprintf(&buf, "  [%d] reset\n", event.Step)
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Step, event.Kind, event.Command, event.SW)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the trace and returns
// the failures in assertion order.
func EvaluateAssertions(trace []TraceEvent, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSWSeen:
			err = assertSWSeen(trace, a)
		case AssertSWCount:
			err = assertSWCount(trace, a)
		case AssertSWOrder:
			err = assertSWOrder(trace, a)
		case AssertSiteHit:
			err = assertSiteHit(trace, a)
		case AssertNoFault:
			err = assertNoFault(trace)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// normalizeSW renders a status word the way trace events carry it.
func normalizeSW(s string) string {
	w, err := status.Parse(s)
	if err != nil {
		return strings.ToUpper(s)
	}
	return w.String()
}

func countSW(trace []TraceEvent, sw string) int {
	n := 0
	for _, event := range trace {
		if event.SW == sw {
			n++
		}
	}
	return n
}

func assertSWSeen(trace []TraceEvent, a Assertion) error {
	sw := normalizeSW(a.SW)
	if countSW(trace, sw) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSWSeen,
		Expected: "a response with sw " + sw,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertSWCount(trace []TraceEvent, a Assertion) error {
	sw := normalizeSW(a.SW)
	if n := countSW(trace, sw); n != a.Count {
		return &AssertionError{
			Type:     AssertSWCount,
			Expected: fmt.Sprintf("%d responses with sw %s", a.Count, sw),
			Actual:   fmt.Sprintf("%d responses", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertSWOrder checks that the status words occur as a subsequence of the
// trace; other responses may come between them.
func assertSWOrder(trace []TraceEvent, a Assertion) error {
	want := make([]string, len(a.SWs))
	for i, sw := range a.SWs {
		want[i] = normalizeSW(sw)
	}

	next := 0
	for _, event := range trace {
		if next < len(want) && event.SW == want[next] {
			next++
		}
	}
	if next == len(want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSWOrder,
		Expected: fmt.Sprintf("status words in order: %v", want),
		Actual:   fmt.Sprintf("%s not found after %v", want[next], want[:next]),
		Trace:    trace,
	}
}

func assertSiteHit(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		for _, site := range event.Sites {
			if strings.Contains(site.Text, a.Contains) || strings.Contains(site.Location, a.Contains) {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertSiteHit,
		Expected: fmt.Sprintf("a decoded site matching %q", a.Contains),
		Actual:   "no decoded site matched",
		Trace:    trace,
	}
}

// assertNoFault fails on any response the platform could not diagnose.
func assertNoFault(trace []TraceEvent) error {
	unknown := status.Unknown.String()
	for _, event := range trace {
		if event.SW != unknown {
			continue
		}
		actual := fmt.Sprintf("step %d answered %s", event.Step, unknown)
		if event.Cause != "" {
			actual += ": " + event.Cause
		}
		return &AssertionError{
			Type:     AssertNoFault,
			Expected: "no " + unknown + " responses",
			Actual:   actual,
			Trace:    trace,
		}
	}
	return nil
}
