// Package profile loads card profiles: CUE files naming the components to
// install on a simulated card and the share policy between them.
//
//	share: "allowlist"
//	applets: {
//		server: {aid: "A000000062030101", kind: "memserver"}
//		client: {aid: "A000000062030102", kind: "memclient", may_access: ["server"]}
//	}
//
// Profiles are unified with an embedded schema and must be concrete.
// Components are installed in declaration order.
package profile

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cardcheck/internal/applets/memclient"
	"github.com/roach88/cardcheck/internal/applets/memserver"
	"github.com/roach88/cardcheck/internal/card"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE []byte

// Share modes.
const (
	ShareOpen      = "open"
	ShareAllowlist = "allowlist"
)

// Error codes.
const (
	ErrCodeRead      = "E_PROFILE_READ"
	ErrCodeSyntax    = "E_PROFILE_SYNTAX"
	ErrCodeSchema    = "E_PROFILE_SCHEMA"
	ErrCodeReference = "E_PROFILE_REFERENCE"
)

// Error is a profile that could not be loaded.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func cueError(code string, err error) *Error {
	e := &Error{Code: code, Message: err.Error()}
	if pos := cueerrors.Positions(err); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}

// Profile is a validated card profile.
type Profile struct {
	Share   string
	Applets []Applet
}

// Applet is one component entry.
type Applet struct {
	Name      string
	AID       card.AID
	Kind      string
	MayAccess []string
}

// constructors maps profile kinds to components.
var constructors = map[string]func() card.Applet{
	"memserver": func() card.Applet { return memserver.New() },
	"memclient": func() card.Applet { return memclient.New() },
}

// Load reads and validates the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(data, path)
}

// Default returns the built-in profile: one server and one client allowed
// to reach it.
func Default() *Profile {
	p, err := Parse(defaultCUE, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("built-in profile: %v", err))
	}
	return p
}

// Parse validates CUE source against the profile schema. filename is used in
// error positions.
func Parse(data []byte, filename string) (*Profile, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("profile schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeSyntax, err)
	}
	value = schema.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}

	share, err := value.LookupPath(cue.ParsePath("share")).String()
	if err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}
	p := &Profile{Share: share}

	iter, err := value.LookupPath(cue.ParsePath("applets")).Fields()
	if err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}
	for iter.Next() {
		a, err := parseApplet(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		p.Applets = append(p.Applets, a)
	}

	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseApplet(name string, v cue.Value) (Applet, error) {
	a := Applet{Name: name}

	aidText, err := v.LookupPath(cue.ParsePath("aid")).String()
	if err != nil {
		return a, cueError(ErrCodeSchema, err)
	}
	if a.AID, err = card.ParseAID(aidText); err != nil {
		return a, &Error{Code: ErrCodeSchema, Message: fmt.Sprintf("applet %s: %v", name, err), Pos: v.Pos()}
	}

	if a.Kind, err = v.LookupPath(cue.ParsePath("kind")).String(); err != nil {
		return a, cueError(ErrCodeSchema, err)
	}

	if access := v.LookupPath(cue.ParsePath("may_access")); access.Exists() {
		if err := access.Decode(&a.MayAccess); err != nil {
			return a, cueError(ErrCodeSchema, err)
		}
	}
	return a, nil
}

// check enforces what the schema cannot express: unique AIDs and
// references to declared components.
func (p *Profile) check() error {
	names := make(map[string]bool, len(p.Applets))
	owners := make(map[card.AID]string, len(p.Applets))
	for _, a := range p.Applets {
		if prev, dup := owners[a.AID]; dup {
			return &Error{Code: ErrCodeReference, Message: fmt.Sprintf("applets %s and %s share AID %s", prev, a.Name, a.AID)}
		}
		owners[a.AID] = a.Name
		names[a.Name] = true
	}
	for _, a := range p.Applets {
		for _, peer := range a.MayAccess {
			if !names[peer] {
				return &Error{Code: ErrCodeReference, Message: fmt.Sprintf("applet %s may_access unknown applet %q", a.Name, peer)}
			}
		}
	}
	return nil
}

// SharePolicy returns the platform share policy the profile describes.
func (p *Profile) SharePolicy() card.SharePolicy {
	if p.Share != ShareAllowlist {
		return card.AllowAll
	}
	byName := make(map[string]card.AID, len(p.Applets))
	for _, a := range p.Applets {
		byName[a.Name] = a.AID
	}
	allowed := make(map[card.AID]map[card.AID]bool)
	for _, a := range p.Applets {
		for _, peer := range a.MayAccess {
			if allowed[a.AID] == nil {
				allowed[a.AID] = make(map[card.AID]bool)
			}
			allowed[a.AID][byName[peer]] = true
		}
	}
	return func(client, server card.AID) bool {
		return allowed[client][server]
	}
}

// Build creates a platform with the profile's components installed. opts are
// applied after the profile's share policy and may override it.
func (p *Profile) Build(opts ...card.Option) (*card.Platform, error) {
	all := append([]card.Option{card.WithSharePolicy(p.SharePolicy())}, opts...)
	plat := card.New(all...)
	for _, a := range p.Applets {
		newApplet, ok := constructors[a.Kind]
		if !ok {
			return nil, &Error{Code: ErrCodeSchema, Message: fmt.Sprintf("applet %s: unknown kind %q", a.Name, a.Kind)}
		}
		if err := plat.Install(a.AID, a.Name, newApplet()); err != nil {
			return nil, err
		}
	}
	return plat, nil
}

// Lookup returns the entry named name.
func (p *Profile) Lookup(name string) (Applet, bool) {
	for _, a := range p.Applets {
		if a.Name == name {
			return a, true
		}
	}
	return Applet{}, false
}
