package card

import (
	"fmt"
)

// Shareable marks an object a component hands to other components. The
// platform passes it through untouched; what it exposes is up to the owner.
type Shareable interface{}

// Context is the execution context of the command being processed. Its
// active AID is the firewall context: the component whose code is running.
type Context struct {
	p         *Platform
	active    AID
	selecting bool
}

// Active returns the context currently executing.
func (c *Context) Active() AID {
	return c.active
}

// SelectingApplet reports whether the command being processed is the SELECT
// that made the active component current.
func (c *Context) SelectingApplet() bool {
	return c.selecting
}

// Selected returns the currently selected component.
func (c *Context) Selected() AID {
	return c.p.selected
}

// checkAccess enforces the firewall for a.
func (c *Context) checkAccess(a *Array) {
	if a == nil {
		ThrowSystem(ReasonIllegalUse, "nil array")
	}
	if a.owner == c.active || a.desc.Class == MemoryGlobal {
		return
	}
	panic(&SecurityError{Owner: a.owner, Accessor: c.active})
}

// MakeArray allocates a persistent array owned by the active context.
func (c *Context) MakeArray(kind Kind, length int) *Array {
	return c.allocate(kind, length, MemoryPersistent)
}

// MakeTransientArray allocates a transient array cleared on the given event.
// class must be MemoryTransientReset or MemoryTransientDeselect.
func (c *Context) MakeTransientArray(kind Kind, length int, class MemoryClass) *Array {
	if class != MemoryTransientReset && class != MemoryTransientDeselect {
		ThrowSystem(ReasonIllegalValue, fmt.Sprintf("memory class %s is not transient", class))
	}
	return c.allocate(kind, length, class)
}

// MakeArrayIn allocates an array in any of the three non-global classes.
func (c *Context) MakeArrayIn(kind Kind, length int, class MemoryClass) *Array {
	if class == MemoryPersistent {
		return c.MakeArray(kind, length)
	}
	return c.MakeTransientArray(kind, length, class)
}

// MakeGlobalArray allocates an array readable from every context. Global
// arrays are cleared on reset.
func (c *Context) MakeGlobalArray(kind Kind, length int) *Array {
	return c.allocate(kind, length, MemoryGlobal)
}

func (c *Context) allocate(kind Kind, length int, class MemoryClass) *Array {
	if !kind.Valid() {
		ThrowSystem(ReasonIllegalValue, fmt.Sprintf("unknown element kind %d", byte(kind)))
	}
	if length < 0 {
		ThrowSystem(ReasonIllegalValue, fmt.Sprintf("negative length %d", length))
	}
	a := newArray(c.active, kind, length, class)
	c.p.track(a)
	return a
}

// LookupAID returns the installed component with the given identifier.
func (c *Context) LookupAID(raw []byte) (AID, bool) {
	aid := AID(raw)
	_, ok := c.p.applets[aid]
	return aid, ok
}

// Shareable asks the component server for the object it shares with the
// active context. It returns nil when server is not installed, shares
// nothing, or the platform's share policy refuses the request.
//
// The server's provider runs in the server's context.
func (c *Context) Shareable(server AID, param byte) Shareable {
	inst, ok := c.p.applets[server]
	if !ok {
		return nil
	}
	provider, ok := inst.applet.(ShareableProvider)
	if !ok {
		return nil
	}
	client := c.active
	if !c.p.policy(client, server) {
		c.p.logger.Debug("share refused by policy", "client", client, "server", server)
		return nil
	}

	c.active = server
	defer func() { c.active = client }()
	return provider.Shareable(c, client, param)
}
