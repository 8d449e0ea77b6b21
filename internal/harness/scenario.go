package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/status"
)

// Scenario is a scripted card session.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are named after it.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Profile is the card profile for local runs and for resolving component
	// names. Empty means the built-in profile.
	Profile string `yaml:"profile,omitempty"`

	// Sources are preprocessed inputs whose assertion sites decode status
	// words in the trace. They keep the names written in the file, relative
	// to Dir, so decoded locations do not depend on where the scenario lives.
	Sources []string `yaml:"sources,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Dir is the directory of the scenario file; set at load time.
	Dir string `yaml:"-"`
}

// Step is one action against the card. Exactly one of Select, Send and
// Reset is set.
type Step struct {
	// Select names a profile component, or gives an AID in hex.
	Select string `yaml:"select,omitempty"`

	// Send is a command APDU in hex; spaces are allowed.
	Send string `yaml:"send,omitempty"`

	Reset bool `yaml:"reset,omitempty"`

	// Expect checks the response. Without it any response is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected response of a step.
type Expect struct {
	// SW is the expected status word in hex.
	SW string `yaml:"sw"`

	// Data is the expected response data in hex. Nil means unchecked; an
	// empty string requires no data.
	Data *string `yaml:"data,omitempty"`

	// Site, for assertion status words, names one decoded site as
	// "file:line", e.g. "checks.go.in:19". The file may be a trailing part
	// of the site's path; the line must match exactly. Without ":line" any
	// site in the file matches.
	Site string `yaml:"site,omitempty"`
}

// Assertion checks the whole trace after the steps have run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// SW is the status word (sw_seen, sw_count).
	SW string `yaml:"sw,omitempty"`

	// Count is the expected number of responses with SW (sw_count).
	Count int `yaml:"count,omitempty"`

	// SWs is the expected order of status words (sw_order).
	SWs []string `yaml:"sws,omitempty"`

	// Contains must appear in the text of a decoded site (site_hit).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion types.
const (
	AssertSWSeen  = "sw_seen"
	AssertSWCount = "sw_count"
	AssertSWOrder = "sw_order"
	AssertSiteHit = "site_hit"
	AssertNoFault = "no_fault"
)

// LoadScenario reads a scenario file. Unknown fields are rejected, and
// profile and source paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes scenario YAML. Relative paths are resolved against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	s.Dir = dir

	if s.Profile != "" {
		s.Profile = resolvePath(dir, s.Profile)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// SourcePath returns the file a source entry refers to.
func (s *Scenario) SourcePath(src string) string {
	return resolvePath(s.Dir, src)
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Profile != "" {
		if _, err := os.Stat(s.Profile); err != nil {
			return fmt.Errorf("profile not found: %s", s.Profile)
		}
	}
	for _, src := range s.Sources {
		if _, err := os.Stat(s.SourcePath(src)); err != nil {
			return fmt.Errorf("source not found: %s", src)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step *Step) error {
	actions := 0
	if step.Select != "" {
		actions++
	}
	if step.Send != "" {
		actions++
		if _, err := card.ParseCommandHex(step.Send); err != nil {
			return fmt.Errorf("steps[%d].send: %w", i, err)
		}
	}
	if step.Reset {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of select, send, reset is required", i)
	}

	if step.Expect != nil {
		if step.Reset {
			return fmt.Errorf("steps[%d]: reset has no response to expect", i)
		}
		if _, err := status.Parse(step.Expect.SW); err != nil {
			return fmt.Errorf("steps[%d].expect.sw: %w", i, err)
		}
		if step.Expect.Data != nil {
			if _, err := parseHex(*step.Expect.Data); err != nil {
				return fmt.Errorf("steps[%d].expect.data: %w", i, err)
			}
		}
	}
	return nil
}

func validateAssertion(i int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	case AssertSWSeen, AssertSWCount:
		if _, err := status.Parse(a.SW); err != nil {
			return fmt.Errorf("assertions[%d].sw: %w", i, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertSWOrder:
		if len(a.SWs) == 0 {
			return fmt.Errorf("assertions[%d]: sws list is required for sw_order", i)
		}
		for _, sw := range a.SWs {
			if _, err := status.Parse(sw); err != nil {
				return fmt.Errorf("assertions[%d].sws: %w", i, err)
			}
		}
	case AssertSiteHit:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for site_hit", i)
		}
	case AssertNoFault:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
