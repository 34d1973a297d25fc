package upload

import (
	"errors"
	"fmt"
)

// Kind classifies why a transition failed.
type Kind int

// Error kinds a transition can settle with.
const (
	KindUnknown Kind = iota
	// KindTokenAcquisition means a fresh authorization token could not be obtained.
	KindTokenAcquisition
	// KindTransport means the transfer failed (network or server rejection).
	KindTransport
	// KindUserAborted means the user cancelled the item.
	KindUserAborted
	// KindIneligible means a transition was forced on an item its predicate rejects.
	KindIneligible
)

// Sentinel errors matching each Kind through errors.Is.
var (
	ErrTokenAcquisition = errors.New("token acquisition failed")
	ErrTransport        = errors.New("transport failed")
	ErrUserAborted      = errors.New("aborted by user")
	ErrIneligibleItem   = errors.New("item is not eligible for transition")
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTokenAcquisition:
		return "token_acquisition"
	case KindTransport:
		return "transport"
	case KindUserAborted:
		return "user_aborted"
	case KindIneligible:
		return "ineligible"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTokenAcquisition:
		return ErrTokenAcquisition
	case KindTransport:
		return ErrTransport
	case KindUserAborted:
		return ErrUserAborted
	case KindIneligible:
		return ErrIneligibleItem
	default:
		return nil
	}
}

// Error is a per-item transition failure. It unwraps to both the sentinel for
// its Kind and the underlying cause.
type Error struct {
	Kind   Kind
	ItemID string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ItemID != "" {
		msg = fmt.Sprintf("item %s: %s", e.ItemID, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2) //nolint:mnd // sentinel + cause
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, itemID, op string, err error) *Error {
	return &Error{Kind: kind, ItemID: itemID, Op: op, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrUserAborted):
		return KindUserAborted
	case errors.Is(err, ErrTokenAcquisition):
		return KindTokenAcquisition
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrIneligibleItem):
		return KindIneligible
	default:
		return KindUnknown
	}
}
