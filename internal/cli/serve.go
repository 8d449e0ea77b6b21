package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen  string
	Profile string

	// StartSeq is the last sequence number a previous card handed out, so
	// a restarted card does not reuse numbers already in transcripts.
	StartSeq int64
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a simulated card over a websocket",
		Long: `Build a simulated card from a profile and serve it at ws://<listen>/apdu.

Commands from all connections are processed one at a time, in arrival order,
against the same card. Stop with Ctrl-C; the last sequence number is logged
so a restarted card can continue after it with --start-seq.

Examples:
  cardcheck serve
  cardcheck serve --listen 0.0.0.0:7816 --profile card.cue
  cardcheck serve --start-seq 1532`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "card profile (default from config, else built-in)")
	cmd.Flags().Int64Var(&opts.StartSeq, "start-seq", 0, "continue sequence numbers after this value")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	logger := opts.logger()

	srv, clock, err := newCardServer(opts)
	if err != nil {
		return err
	}

	addr := opts.Listen
	if addr == "" {
		addr = opts.cfg().Remote.Listen
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	logger.Info("server stopped", "last_seq", clock.Current())
	return nil
}

// newCardServer builds the card from the profile and wraps it in a server.
// The returned clock numbers the card's exchanges.
func newCardServer(opts *ServeOptions) (*transport.Server, *card.Clock, error) {
	logger := opts.logger()

	if opts.StartSeq < 0 {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("--start-seq must not be negative, got %d", opts.StartSeq))
	}
	prof, err := opts.loadProfile(opts.Profile)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load profile", err)
	}
	clock := card.NewClockAt(opts.StartSeq)
	plat, err := prof.Build(card.WithSequencer(clock), card.WithLogger(logger))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to build card", err)
	}
	for _, a := range prof.Applets {
		logger.Info("installed", "name", a.Name, "aid", a.AID.String(), "kind", a.Kind)
	}
	if opts.StartSeq > 0 {
		logger.Info("resuming sequence numbers", "after", opts.StartSeq)
	}
	return transport.NewServer(transport.NewLocal(plat), logger), clock, nil
}
