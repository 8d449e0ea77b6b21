// Package assertion provides the on-card assertion primitives.
//
// Every primitive takes the caller's source line as its first argument. The
// line is a literal baked into the call site by the preprocessing pass
// (see package macro), because card code cannot discover its caller at run
// time. A passing assertion has no effect. A failing one throws
// status.Assertion(line), which ends the current command; the next command
// runs normally.
//
// Call sites in card sources are written against the placeholder token:
//
//	assertion.Equal(__LINE__, byte(card.KindByte), d.Kind)
//
// and the preprocessed output carries the literal:
//
//	assertion.Equal(41, byte(card.KindByte), d.Kind)
//
// No message text is built or stored on failure.
package assertion
