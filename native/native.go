// Package native is a narrow typed binding to the Objective-C runtime calls
// used to drive NSPasteboard. Each method maps to one message send with a
// fixed signature; the absence signals of the native service (nil object,
// NO) are passed through unchanged as Nil and false for the caller to check.
//
// Ownership follows Cocoa conventions:
//
//	LookupClass               class objects, never released
//	GeneralPasteboard         borrowed
//	PasteboardItems, Types,
//	ObjectAtIndex, DataForType borrowed (autoreleased)
//	New, NewData, NewString,
//	NewArray                  owned (+1), caller must Release
//
// Borrowed results are only valid until the enclosing pool is popped.
package native

import "errors"

// ID is an opaque handle to a native object or class.
type ID uintptr

// Nil is the native null handle.
const Nil ID = 0

// ErrUnsupported is returned by Open on platforms without an Objective-C
// runtime.
var ErrUnsupported = errors.New("native: objc runtime not available on this platform")

// Runtime is the set of native operations used by the pasteboard layer.
type Runtime interface {
	// LookupClass resolves a class by name through the runtime's class
	// registry. Returns Nil if the class is not registered.
	LookupClass(name string) ID

	// GeneralPasteboard sends +generalPasteboard to cls.
	GeneralPasteboard(cls ID) ID
	// PasteboardItems sends -pasteboardItems to pb.
	PasteboardItems(pb ID) ID
	// ClearContents sends -clearContents to pb and returns the new change count.
	ClearContents(pb ID) int
	// WriteObjects sends -writeObjects: to pb.
	WriteObjects(pb, array ID) bool

	// Types sends -types to a pasteboard item.
	Types(item ID) ID
	// DataForType sends -dataForType: to a pasteboard item.
	DataForType(item, typ ID) ID
	// SetDataForType sends -setData:forType: to a pasteboard item.
	SetDataForType(item, data, typ ID) bool

	// Count sends -count to an NSArray.
	Count(array ID) int
	// ObjectAtIndex sends -objectAtIndex: to an NSArray.
	ObjectAtIndex(array ID, i int) ID
	// NewArray allocates an instance of cls and sends -initWithObjects:count:.
	NewArray(cls ID, objs []ID) ID

	// New sends +new to cls.
	New(cls ID) ID
	// NewData creates an NSData holding a copy of b.
	NewData(b []byte) ID
	// NewString creates an NSString from UTF-8 s.
	NewString(s string) ID
	// Bytes copies the contents of an NSData into Go memory.
	Bytes(data ID) []byte
	// String copies the UTF-8 contents of an NSString into a Go string.
	String(str ID) string

	Retain(id ID) ID
	Release(id ID)

	// PushPool opens an autorelease pool; PopPool drains it.
	PushPool() uintptr
	PopPool(pool uintptr)
}
