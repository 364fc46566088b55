// Package pasteboard reads and writes the macOS general pasteboard.
//
// A Context holds a retained handle to the general pasteboard and performs
// two operations: Get returns the first type of the first item together
// with its bytes, and Set replaces the whole pasteboard with one item
// carrying the given bytes under the given type identifier. Type
// identifiers are passed through untouched (e.g. "public.utf8-plain-text").
//
// Every native call that may legally return nil or NO is checked at the call
// site and turned into an *InitError, *ReadError or *WriteError wrapping one
// of the Err* sentinels. Calls block until the pasteboard service returns.
//
// A Context is not safe for concurrent use. The pasteboard itself is shared
// with every other process on the system, so a Get followed by a Set is never
// atomic with respect to other applications.
package pasteboard

import (
	"fmt"
	"log/slog"

	"go.klb.dev/pasteboard/native"
)

// Context owns a handle to the general pasteboard.
type Context struct {
	rt   native.Runtime
	log  *slog.Logger
	opts options

	pb      native.ID
	itemCls native.ID
}

// New resolves the pasteboard class and retains the general pasteboard.
// It does not modify the clipboard.
func New(opts ...Option) (*Context, error) {
	o := options{
		pasteboardCls: DefaultPasteboardClass,
		itemCls:       DefaultItemClass,
		arrayCls:      DefaultArrayClass,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	rt := o.rt
	if rt == nil {
		var err error
		if rt, err = native.Open(); err != nil {
			return nil, &InitError{Op: "open", Err: fmt.Errorf("%w: %w", ErrRuntime, err)}
		}
	}

	pool := rt.PushPool()
	defer rt.PopPool(pool)

	cls := rt.LookupClass(o.pasteboardCls)
	if cls == native.Nil {
		return nil, &InitError{Op: lookupOp(o.pasteboardCls), Err: ErrClassLookup}
	}
	pb := rt.GeneralPasteboard(cls)
	if pb == native.Nil {
		return nil, &InitError{Op: "generalPasteboard", Err: ErrNullHandle}
	}

	c := &Context{
		rt:   rt,
		log:  o.logger.With("component", "pasteboard"),
		opts: o,
		pb:   rt.Retain(pb),
	}
	c.log.Debug("pasteboard handle acquired", "class", o.pasteboardCls)
	return c, nil
}

// Get returns the data of the first type of the first pasteboard item and
// that type's identifier. An empty pasteboard is an error (ErrNoItems). The
// returned slice is a copy owned by the caller.
func (c *Context) Get() ([]byte, string, error) {
	if c.pb == native.Nil {
		return nil, "", &ReadError{Op: "get", Err: ErrClosed}
	}
	pool := c.rt.PushPool()
	defer c.rt.PopPool(pool)

	items := c.rt.PasteboardItems(c.pb)
	if items == native.Nil {
		return nil, "", &ReadError{Op: "pasteboardItems", Err: ErrNullItems}
	}
	if c.rt.Count(items) == 0 {
		return nil, "", &ReadError{Op: "pasteboardItems", Err: ErrNoItems}
	}
	item := c.rt.ObjectAtIndex(items, 0)
	if item == native.Nil {
		return nil, "", &ReadError{Op: "objectAtIndex:", Err: ErrNullItem}
	}

	types := c.rt.Types(item)
	if types == native.Nil {
		return nil, "", &ReadError{Op: "types", Err: ErrNullTypes}
	}
	if c.rt.Count(types) == 0 {
		return nil, "", &ReadError{Op: "types", Err: ErrNoTypes}
	}
	kind := c.rt.ObjectAtIndex(types, 0)
	if kind == native.Nil {
		return nil, "", &ReadError{Op: "objectAtIndex:", Err: ErrNullType}
	}

	data := c.rt.DataForType(item, kind)
	if data == native.Nil {
		return nil, "", &ReadError{Op: "dataForType:", Err: ErrNullData}
	}

	buf, typ := c.rt.Bytes(data), c.rt.String(kind)
	logPayload(c.log, "pasteboard read", buf, typ)
	return buf, typ, nil
}

// Set replaces the pasteboard contents with a single item holding data
// under typ.
//
// The one-element item array is built before the existing contents are
// cleared, so writeObjects: is the only call that can fail after the clear.
// If that write is rejected the pasteboard is left empty and the returned
// *WriteError has Cleared set.
func (c *Context) Set(data []byte, typ string) error {
	if c.pb == native.Nil {
		return &WriteError{Op: "set", Err: ErrClosed}
	}
	pool := c.rt.PushPool()
	defer c.rt.PopPool(pool)

	cls, err := c.itemClass()
	if err != nil {
		return err
	}
	item := c.rt.New(cls)
	if item == native.Nil {
		return &WriteError{Op: "new", Err: ErrNullItem}
	}
	defer c.rt.Release(item)

	nsData := c.rt.NewData(data)
	if nsData == native.Nil {
		return &WriteError{Op: "initWithBytes:length:", Err: ErrNullBuffer}
	}
	defer c.rt.Release(nsData)
	nsType := c.rt.NewString(typ)
	if nsType == native.Nil {
		return &WriteError{Op: "initWithBytes:length:encoding:", Err: ErrNullBuffer}
	}
	defer c.rt.Release(nsType)

	if !c.rt.SetDataForType(item, nsData, nsType) {
		return &WriteError{Op: "setData:forType:", Err: ErrSetData}
	}

	// The array is built before clearing so that only writeObjects: can fail
	// once the old contents are gone.
	arrCls := c.rt.LookupClass(c.opts.arrayCls)
	if arrCls == native.Nil {
		return &WriteError{Op: lookupOp(c.opts.arrayCls), Err: ErrArrayClassLookup}
	}
	arr := c.rt.NewArray(arrCls, []native.ID{item})
	if arr == native.Nil {
		return &WriteError{Op: "initWithObjects:count:", Err: ErrNullArray}
	}
	defer c.rt.Release(arr)

	c.rt.ClearContents(c.pb)
	if !c.rt.WriteObjects(c.pb, arr) {
		c.log.Warn("pasteboard cleared but not rewritten", "type", typ, "size_bytes", len(data))
		return &WriteError{Op: "writeObjects:", Err: ErrWriteObjects, Cleared: true}
	}

	logPayload(c.log, "pasteboard write", data, typ)
	return nil
}

// Close releases the pasteboard handle. It is safe to call more than once.
func (c *Context) Close() error {
	if c.pb == native.Nil {
		return nil
	}
	c.rt.Release(c.pb)
	c.pb = native.Nil
	c.itemCls = native.Nil
	return nil
}

func (c *Context) itemClass() (native.ID, error) {
	if c.itemCls != native.Nil {
		return c.itemCls, nil
	}
	cls := c.rt.LookupClass(c.opts.itemCls)
	if cls == native.Nil {
		return native.Nil, &WriteError{Op: lookupOp(c.opts.itemCls), Err: ErrItemClassLookup}
	}
	if c.opts.cacheItemClass {
		c.itemCls = cls
	}
	return cls, nil
}

func lookupOp(class string) string { return "objc_getClass(" + class + ")" }
