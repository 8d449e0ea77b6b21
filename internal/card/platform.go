package card

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"weak"

	"github.com/roach88/cardcheck/internal/status"
)

// Applet is an installed component. Process handles one command; it ends the
// command early by throwing (status.Throw, ThrowSystem, a failed assertion).
// Response data is queued with apdu.Send.
type Applet interface {
	Process(ctx *Context, apdu *APDU)
}

// Selectable is implemented by components that take part in selection.
// Select may refuse by returning false.
type Selectable interface {
	Select(ctx *Context) bool
	Deselect(ctx *Context)
}

// ShareableProvider is implemented by components that share an object with
// other components. It runs in the provider's own context.
type ShareableProvider interface {
	Shareable(ctx *Context, client AID, param byte) Shareable
}

// SharePolicy decides whether client may obtain server's shareable object.
// It is the platform's authorization layer; providers do no checks of their own.
type SharePolicy func(client, server AID) bool

// AllowAll is the default SharePolicy.
func AllowAll(client, server AID) bool { return true }

// Option configures a Platform.
type Option func(*Platform)

// WithLogger sets the platform logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Platform) { p.logger = l }
}

// WithSequencer replaces the platform clock.
func WithSequencer(s Sequencer) Option {
	return func(p *Platform) { p.clock = s }
}

// WithSharePolicy sets the share policy.
func WithSharePolicy(policy SharePolicy) Option {
	return func(p *Platform) {
		if policy != nil {
			p.policy = policy
		}
	}
}

type installed struct {
	aid    AID
	name   string
	applet Applet
}

// Platform simulates a card: installed components, selection, the firewall
// and transient memory. It processes one command at a time and is not safe
// for concurrent use; transports serialize access.
type Platform struct {
	applets  map[AID]*installed
	order    []AID
	selected AID
	clock    Sequencer
	policy   SharePolicy
	logger   *slog.Logger

	// Transient arrays per owner, held weakly so abandoned arrays can be
	// collected.
	transients map[AID][]weak.Pointer[Array]
}

// New creates an empty platform.
func New(opts ...Option) *Platform {
	p := &Platform{
		applets:    make(map[AID]*installed),
		clock:      NewClock(),
		policy:     AllowAll,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		transients: make(map[AID][]weak.Pointer[Array]),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Install registers a component under aid. name is a label for logs and
// scenarios; it defaults to the AID.
func (p *Platform) Install(aid AID, name string, applet Applet) error {
	if _, err := NewAID([]byte(aid)); err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	if _, dup := p.applets[aid]; dup {
		return fmt.Errorf("install %s: AID %s already installed", name, aid)
	}
	if name == "" {
		name = aid.String()
	}
	p.applets[aid] = &installed{aid: aid, name: name, applet: applet}
	p.order = append(p.order, aid)
	p.logger.Info("component installed", "aid", aid, "name", name)
	return nil
}

// Installed returns the AIDs of all components in installation order.
func (p *Platform) Installed() []AID {
	return append([]AID(nil), p.order...)
}

// Lookup finds an installed component by name.
func (p *Platform) Lookup(name string) (AID, bool) {
	for _, aid := range p.order {
		if p.applets[aid].name == name {
			return aid, true
		}
	}
	return "", false
}

// Selected returns the selected component, or the zero AID.
func (p *Platform) Selected() AID {
	return p.selected
}

// Transmit processes one command given as raw bytes.
func (p *Platform) Transmit(raw []byte) Response {
	cmd, err := ParseCommand(raw)
	if err != nil {
		return Response{SW: status.WrongLength, Seq: p.clock.Next(), Cause: err}
	}
	return p.TransmitCommand(cmd)
}

// TransmitCommand processes one command to completion and returns its
// response. Errors thrown by components end only this command.
func (p *Platform) TransmitCommand(cmd Command) Response {
	seq := p.clock.Next()
	var resp Response
	if cmd.IsSelect() {
		resp = p.selectApplet(cmd)
	} else {
		resp = p.dispatch(cmd, false)
	}
	resp.Seq = seq

	p.logger.Debug("processing command",
		"seq", seq,
		"aid", p.selected,
		"ins", fmt.Sprintf("%02X", cmd.INS),
		"sw", resp.SW,
	)
	if resp.Cause != nil {
		p.logger.Debug("command failed", "seq", seq, "cause", resp.Cause)
	}
	return resp
}

// Select is TransmitCommand(SelectCommand(aid)).
func (p *Platform) Select(aid AID) Response {
	return p.TransmitCommand(SelectCommand(aid))
}

func (p *Platform) selectApplet(cmd Command) Response {
	aid := AID(cmd.Data)
	inst, ok := p.applets[aid]
	if !ok {
		return Response{SW: status.FileNotFound}
	}

	p.deselect()

	ctx := &Context{p: p, active: aid, selecting: true}
	if s, ok := inst.applet.(Selectable); ok {
		accepted := true
		if sw, cause := p.run(func() { accepted = s.Select(ctx) }); sw != status.OK {
			return Response{SW: sw, Cause: cause}
		}
		if !accepted {
			return Response{SW: status.AppletSelectFailed}
		}
	}
	p.selected = aid
	return p.dispatch(cmd, true)
}

func (p *Platform) deselect() {
	if p.selected.IsZero() {
		return
	}
	old := p.selected
	p.selected = ""
	if s, ok := p.applets[old].applet.(Selectable); ok {
		ctx := &Context{p: p, active: old}
		if sw, cause := p.run(func() { s.Deselect(ctx) }); sw != status.OK {
			p.logger.Warn("deselect failed", "aid", old, "sw", sw, "cause", cause)
		}
	}
	p.wipe(old, MemoryTransientDeselect)
}

func (p *Platform) dispatch(cmd Command, selecting bool) Response {
	if p.selected.IsZero() {
		return Response{SW: status.FileNotFound, Cause: errors.New("no component selected")}
	}
	inst := p.applets[p.selected]
	ctx := &Context{p: p, active: inst.aid, selecting: selecting}
	apdu := NewAPDU(cmd)

	sw, cause := p.run(func() { inst.applet.Process(ctx, apdu) })
	if sw != status.OK {
		return Response{SW: sw, Cause: cause}
	}
	return Response{Data: apdu.Output(), SW: status.OK}
}

// run executes component code and converts what it throws into a status
// word. Panics that are not card errors are not ours to handle and propagate.
func (p *Platform) run(fn func()) (sw status.Word, cause error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch e := r.(type) {
		case *status.Exception:
			sw, cause = e.Word, nil
		case *SystemError:
			sw, cause = status.Unknown, e
		case *SecurityError:
			sw, cause = status.Unknown, e
		case runtime.Error:
			sw, cause = status.Unknown, e
			p.logger.Error("component fault", "error", e)
		default:
			panic(r)
		}
	}()
	fn()
	return status.OK, nil
}

// Reset simulates a card reset: the selected component is deselected and
// every transient and global array is cleared.
func (p *Platform) Reset() {
	p.deselect()
	for owner := range p.transients {
		p.wipe(owner, MemoryTransientReset)
		p.wipe(owner, MemoryGlobal)
	}
	p.logger.Info("card reset")
}

func (p *Platform) track(a *Array) {
	if !a.desc.Class.Transient() {
		return
	}
	p.transients[a.owner] = append(p.transients[a.owner], weak.Make(a))
}

// wipe clears owner's arrays of the given class and drops collected entries.
func (p *Platform) wipe(owner AID, class MemoryClass) {
	live := p.transients[owner][:0]
	for _, wp := range p.transients[owner] {
		a := wp.Value()
		if a == nil {
			continue
		}
		if a.desc.Class == class {
			a.wipe()
		}
		live = append(live, wp)
	}
	p.transients[owner] = live
}
