package host

import "errors"

// Boundary errors. Platform implementations wrap these; callers test with errors.Is.
var (
	ErrDenied        = errors.New("edit session denied")
	ErrNoLock        = errors.New("no document lock for edit cookie")
	ErrNoFocus       = errors.New("no focused document")
	ErrNoContext     = errors.New("document has no context")
	ErrNoComposition = errors.New("no active composition")
	ErrEmptyValue    = errors.New("compartment holds no value")
	ErrNotFound      = errors.New("not found")
	ErrIncomparable  = errors.New("ranges belong to different content")
	ErrAdviseLimit   = errors.New("sink already advised")
	ErrNoConnection  = errors.New("no such connection")
	ErrCannotConnect = errors.New("sink does not implement the requested interface")
	ErrNotImpl       = errors.New("not implemented")
)
