package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/transport"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	URL     string
	Local   bool
	Profile string
	Reset   bool
	Select  string
}

// Exchange is one command sent and the response it got.
type Exchange struct {
	Seq     int64  `json:"seq"`
	Command string `json:"command"`
	Data    string `json:"data,omitempty"`
	SW      string `json:"sw"`
	Meaning string `json:"meaning"`
	Cause   string `json:"cause,omitempty"`
}

func (e Exchange) String() string {
	s := fmt.Sprintf("[%d] %s -> %s %s", e.Seq, e.Command, e.SW, e.Meaning)
	if e.Data != "" {
		s += "\n    data " + e.Data
	}
	if e.Cause != "" {
		s += "\n    cause " + e.Cause
	}
	return s
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <apdu>...",
		Short: "Send command APDUs to a card",
		Long: `Send command APDUs, given in hex, to a served card and print the responses.

--select sends a SELECT first, naming a profile component or giving an AID.
With --local the commands go to a fresh simulated card instead, which lives
only for this invocation.

Examples:
  cardcheck send --select server "80 02 02 00 02 00 0A"
  cardcheck send --url ws://card-host:7816/apdu 00A4040008A000000062030102
  cardcheck send --local --select client 8010000008A000000062030101`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.Select == "" && !opts.Reset {
				return NewExitError(ExitCommandError, "nothing to send: give APDUs, --select or --reset")
			}
			return runSend(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "websocket URL of the card (default from config)")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "use a fresh local card")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "card profile for --local and component names")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "reset the card first")
	cmd.Flags().StringVar(&opts.Select, "select", "", "component name or AID to select first")

	return cmd
}

func runSend(ctx context.Context, opts *SendOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	prof, err := opts.loadProfile(opts.Profile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load profile", err)
	}

	commands := make([][]byte, 0, len(args)+1)
	if opts.Select != "" {
		aid, err := card.ParseAID(opts.Select)
		if a, ok := prof.Lookup(opts.Select); ok {
			aid, err = a.AID, nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("select %q: not a profile component or AID", opts.Select), err)
		}
		commands = append(commands, card.SelectCommand(aid).Bytes())
	}
	for _, arg := range args {
		b, err := hex.DecodeString(strings.Join(strings.Fields(arg), ""))
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid APDU %q", arg), err)
		}
		commands = append(commands, b)
	}

	var tr transport.Transport
	if opts.Local {
		plat, err := prof.Build(card.WithLogger(opts.logger()))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build card", err)
		}
		tr = transport.NewLocal(plat)
	} else {
		url := opts.URL
		if url == "" {
			url = opts.cfg().Remote.URL
		}
		r, err := transport.Dial(ctx, url)
		if err != nil {
			_ = formatter.Error(ErrCodeTransport, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to connect to card", err)
		}
		tr = r
	}
	defer tr.Close()

	if opts.Reset {
		if err := tr.Reset(ctx); err != nil {
			return WrapExitError(ExitCommandError, "reset failed", err)
		}
		opts.logger().Info("card reset", "transport", tr.Name())
	}

	exchanges := make([]Exchange, 0, len(commands))
	for _, c := range commands {
		resp, err := tr.Transmit(ctx, c)
		if err != nil {
			return WrapExitError(ExitCommandError, "transmit failed", err)
		}
		ex := Exchange{
			Seq:     resp.Seq,
			Command: strings.ToUpper(hex.EncodeToString(c)),
			Data:    strings.ToUpper(hex.EncodeToString(resp.Data)),
			SW:      resp.SW.String(),
			Meaning: resp.SW.Describe(),
		}
		if resp.Cause != nil {
			ex.Cause = resp.Cause.Error()
		}
		exchanges = append(exchanges, ex)
	}

	if opts.Format == "json" {
		return formatter.Success(exchanges)
	}
	for _, ex := range exchanges {
		if err := formatter.Success(ex); err != nil {
			return err
		}
	}
	return nil
}
