package card

import (
	"fmt"
)

// Reason is the cause code of a SystemError.
type Reason uint8

// System error reasons, numbered as on the card platform.
const (
	ReasonIllegalValue     Reason = 1
	ReasonNoTransientSpace Reason = 2
	ReasonIllegalTransient Reason = 3
	ReasonIllegalAID       Reason = 4
	ReasonNoResource       Reason = 5
	ReasonIllegalUse       Reason = 6
)

func (r Reason) String() string {
	switch r {
	case ReasonIllegalValue:
		return "ILLEGAL_VALUE"
	case ReasonNoTransientSpace:
		return "NO_TRANSIENT_SPACE"
	case ReasonIllegalTransient:
		return "ILLEGAL_TRANSIENT"
	case ReasonIllegalAID:
		return "ILLEGAL_AID"
	case ReasonNoResource:
		return "NO_RESOURCE"
	case ReasonIllegalUse:
		return "ILLEGAL_USE"
	}
	return fmt.Sprintf("REASON_%d", uint8(r))
}

// SystemError is raised by the platform when card code passes an illegal
// argument or exhausts a resource. Uncaught, it ends the command with
// status.Unknown.
type SystemError struct {
	Reason Reason
	Detail string
}

// Error implements the error interface.
func (e *SystemError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("system error %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("system error %s", e.Reason)
}

// SecurityError is raised when code running in one context touches an object
// owned by another context without the platform allowing it.
type SecurityError struct {
	Owner    AID
	Accessor AID
}

// Error implements the error interface.
func (e *SecurityError) Error() string {
	return fmt.Sprintf("firewall: context %s may not access object owned by %s", e.Accessor, e.Owner)
}

// ThrowSystem abandons the current command with a SystemError.
func ThrowSystem(reason Reason, detail string) {
	panic(&SystemError{Reason: reason, Detail: detail})
}
