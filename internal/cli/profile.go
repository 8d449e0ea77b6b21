package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/profile"
)

// ProfileApplet is one component entry in command output.
type ProfileApplet struct {
	Name      string   `json:"name"`
	AID       string   `json:"aid"`
	Kind      string   `json:"kind"`
	MayAccess []string `json:"may_access,omitempty"`
}

// ProfileResult describes a valid profile.
type ProfileResult struct {
	Path    string          `json:"path"`
	Share   string          `json:"share"`
	Applets []ProfileApplet `json:"applets"`
}

func (r ProfileResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s: share %s, %d component(s)", r.Path, r.Share, len(r.Applets))
	for _, a := range r.Applets {
		fmt.Fprintf(&b, "\n  %-12s %-32s %s", a.Name, a.AID, a.Kind)
		if len(a.MayAccess) > 0 {
			fmt.Fprintf(&b, " -> %s", strings.Join(a.MayAccess, ", "))
		}
	}
	return b.String()
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect card profiles",
	}
	cmd.AddCommand(newProfileValidateCommand(rootOpts))
	return cmd
}

func newProfileValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [profile.cue]",
		Short: "Validate a card profile",
		Long: `Validate a CUE card profile against the profile schema and list its
components. Without an argument the configured profile is checked, or the
built-in one when none is configured.

Exit codes:
  0 - Profile is valid
  1 - Profile is invalid
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runProfileValidate(rootOpts, path, cmd)
		},
	}
}

func runProfileValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if path == "" {
		path = opts.cfg().Card.Profile
	}
	prof, err := opts.loadProfile(path)
	if err != nil {
		var perr *profile.Error
		if !errors.As(err, &perr) {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		var details interface{}
		if perr.Pos.IsValid() {
			details = map[string]interface{}{
				"file":   perr.Pos.Filename(),
				"line":   perr.Pos.Line(),
				"column": perr.Pos.Column(),
			}
		}
		_ = formatter.Error(perr.Code, perr.Message, details)
		if perr.Code == profile.ErrCodeRead {
			return WrapExitError(ExitCommandError, "failed to read profile", err)
		}
		return WrapExitError(ExitFailure, "profile is invalid", err)
	}

	result := ProfileResult{Path: path, Share: prof.Share, Applets: make([]ProfileApplet, 0, len(prof.Applets))}
	if path == "" {
		result.Path = "(built-in)"
	}
	for _, a := range prof.Applets {
		result.Applets = append(result.Applets, ProfileApplet{
			Name:      a.Name,
			AID:       a.AID.String(),
			Kind:      a.Kind,
			MayAccess: a.MayAccess,
		})
	}
	return formatter.Success(result)
}
