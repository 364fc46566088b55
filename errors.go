package pasteboard

import (
	"errors"
	"strings"
)

// Construction failures, wrapped in *InitError.
var (
	ErrRuntime     = errors.New("objc runtime unavailable")
	ErrClassLookup = errors.New("class lookup failed")
	ErrNullHandle  = errors.New("service returned null handle")
)

// Read failures, wrapped in *ReadError.
var (
	ErrNullItems = errors.New("items collection is null")
	ErrNoItems   = errors.New("no items present")
	ErrNullTypes = errors.New("types list is null")
	ErrNoTypes   = errors.New("types list is empty")
	ErrNullType  = errors.New("type at index 0 is null")
	ErrNullData  = errors.New("data for type is null")
)

// Write failures, wrapped in *WriteError. ErrNullItem is also returned by
// reads when the first item of a non-empty collection is nil.
var (
	ErrItemClassLookup  = errors.New("item class lookup failed")
	ErrNullItem         = errors.New("item is null")
	ErrNullBuffer       = errors.New("native buffer conversion failed")
	ErrSetData          = errors.New("setData returned false")
	ErrArrayClassLookup = errors.New("array class lookup failed")
	ErrNullArray        = errors.New("item array is null")
	ErrWriteObjects     = errors.New("writeObjects returned false")
)

// ErrClosed is returned by Get and Set after Close.
var ErrClosed = errors.New("context closed")

// InitError is returned by New. Op names the native step that failed.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string { return message("init", e.Op, e.Err) }
func (e *InitError) Unwrap() error { return e.Err }

// ReadError is returned by Get. No partial payload accompanies it.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string { return message("read", e.Op, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError is returned by Set. Cleared reports whether the pasteboard had
// already been emptied when the failure occurred.
type WriteError struct {
	Op      string
	Err     error
	Cleared bool
}

func (e *WriteError) Error() string { return message("write", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// message renders "pasteboard: <kind>: <op>: <err>". A selector's trailing
// colon is dropped so it does not run into the separator.
func message(kind, op string, err error) string {
	return "pasteboard: " + kind + ": " + strings.TrimSuffix(op, ":") + ": " + err.Error()
}
