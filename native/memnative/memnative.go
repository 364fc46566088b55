// Package memnative provides an in-memory native.Runtime that models the
// general pasteboard, Cocoa reference counting and autorelease pools.
//
// A single Runtime stands in for the process-external pasteboard service:
// every context built on it shares the same pasteboard, and the methods
// Place, Clear and Contents act as another application touching the
// clipboard. Faults can be injected at each native call to reproduce the
// null/NO results the real service may return.
package memnative

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.klb.dev/pasteboard/native"
)

// Fault names a native call that can be forced to return Nil or false.
type Fault string

const (
	FaultGeneralPasteboard Fault = "generalPasteboard"
	FaultPasteboardItems   Fault = "pasteboardItems"
	FaultObjectAtIndex     Fault = "objectAtIndex:"
	FaultTypeAtIndex       Fault = "objectAtIndex: on types"
	FaultTypes             Fault = "types"
	FaultDataForType       Fault = "dataForType:"
	FaultNew               Fault = "new"
	FaultNewData           Fault = "initWithBytes:length:"
	FaultNewString         Fault = "initWithBytes:length:encoding:"
	FaultSetData           Fault = "setData:forType:"
	FaultNewArray          Fault = "initWithObjects:count:"
	FaultWriteObjects      Fault = "writeObjects:"
)

// Class names registered by New.
const (
	ClassPasteboard     = "NSPasteboard"
	ClassPasteboardItem = "NSPasteboardItem"
	ClassArray          = "NSArray"
	ClassData           = "NSData"
	ClassString         = "NSString"
)

// Rep is one type representation of a pasteboard item. A nil Data makes
// dataForType: return nil for that type.
type Rep struct {
	Type string
	Data []byte
}

// Item is a pasteboard item: its representations in type order.
type Item []Rep

type kind int

const (
	kindClass kind = iota
	kindPasteboard
	kindItem
	kindArray
	kindData
	kindString
)

func (k kind) String() string {
	switch k {
	case kindClass:
		return "class"
	case kindPasteboard:
		return "pasteboard"
	case kindItem:
		return "item"
	case kindArray:
		return "array"
	case kindData:
		return "data"
	case kindString:
		return "string"
	}
	return "unknown"
}

type object struct {
	kind  kind
	refs  int
	class string
	reps  []Rep
	elems []native.ID
	data  []byte
	str   string
}

// Runtime is an in-memory native.Runtime. It is safe for concurrent use.
type Runtime struct {
	mu sync.Mutex

	next       native.ID
	objs       map[native.ID]*object
	classes    map[string]native.ID
	pasteboard native.ID
	contents   []native.ID
	changes    int

	faults  map[Fault]bool
	lookups map[string]int

	pools        [][]native.ID
	stray        int
	overReleased int
}

var _ native.Runtime = (*Runtime)(nil)

// New returns a Runtime with an empty general pasteboard.
func New() *Runtime {
	r := &Runtime{
		next:    0x1000,
		objs:    make(map[native.ID]*object),
		classes: make(map[string]native.ID),
		faults:  make(map[Fault]bool),
		lookups: make(map[string]int),
	}
	for _, name := range []string{ClassPasteboard, ClassPasteboardItem, ClassArray, ClassData, ClassString} {
		r.classes[name] = r.alloc(&object{kind: kindClass, class: name})
	}
	r.pasteboard = r.alloc(&object{kind: kindPasteboard, refs: 1})
	return r
}

// Inject makes the named call fail until Heal is called.
func (r *Runtime) Inject(f Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[f] = true
}

// Heal removes an injected fault.
func (r *Runtime) Heal(f Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.faults, f)
}

// Unregister removes a class from the class registry.
func (r *Runtime) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.classes, name)
}

// Register adds a class to the class registry if it is missing.
func (r *Runtime) Register(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[name]; !ok {
		r.classes[name] = r.alloc(&object{kind: kindClass, class: name})
	}
}

// Lookups reports how many times a class name was resolved.
func (r *Runtime) Lookups(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups[name]
}

// Place replaces the pasteboard contents with items, as another
// application would.
func (r *Runtime) Place(items ...Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	for _, it := range items {
		reps := make([]Rep, len(it))
		for i, rep := range it {
			reps[i] = Rep{Type: rep.Type, Data: cloneBytes(rep.Data)}
		}
		r.contents = append(r.contents, r.alloc(&object{kind: kindItem, refs: 1, reps: reps}))
	}
	r.changes++
}

// Clear empties the pasteboard, as another application would.
func (r *Runtime) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	r.changes++
}

// Contents returns a copy of the items currently on the pasteboard.
func (r *Runtime) Contents() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, 0, len(r.contents))
	for _, id := range r.contents {
		o := r.objs[id]
		it := make(Item, len(o.reps))
		for i, rep := range o.reps {
			it[i] = Rep{Type: rep.Type, Data: cloneBytes(rep.Data)}
		}
		out = append(out, it)
	}
	return out
}

// ChangeCount returns the number of times the pasteboard was modified.
func (r *Runtime) ChangeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes
}

// Check reports references that are held by nobody but a client: objects
// retained or created and never released, autoreleases outside a pool,
// releases of dead objects and pools left open.
func (r *Runtime) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	holders := make(map[native.ID]int)
	holders[r.pasteboard]++
	for _, id := range r.contents {
		holders[id]++
	}
	for _, o := range r.objs {
		if o.kind == kindArray {
			for _, e := range o.elems {
				holders[e]++
			}
		}
	}

	ids := make([]native.ID, 0, len(r.objs))
	for id := range r.objs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		o := r.objs[id]
		if o.kind == kindClass {
			continue
		}
		if o.refs != holders[id] {
			errs = append(errs, fmt.Errorf("%s %#x: refs %d, held by runtime %d", o.kind, uintptr(id), o.refs, holders[id]))
		}
	}
	if r.stray > 0 {
		errs = append(errs, fmt.Errorf("%d objects autoreleased with no pool", r.stray))
	}
	if r.overReleased > 0 {
		errs = append(errs, fmt.Errorf("%d releases of dead objects", r.overReleased))
	}
	if len(r.pools) > 0 {
		errs = append(errs, fmt.Errorf("%d autorelease pools still open", len(r.pools)))
	}
	return errors.Join(errs...)
}

func (r *Runtime) LookupClass(name string) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[name]++
	return r.classes[name]
}

func (r *Runtime) GeneralPasteboard(cls native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultGeneralPasteboard] || !r.isClass(cls, ClassPasteboard) {
		return native.Nil
	}
	return r.pasteboard
}

func (r *Runtime) PasteboardItems(pb native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultPasteboardItems] || pb != r.pasteboard {
		return native.Nil
	}
	return r.autorelease(r.newArray(r.contents))
}

func (r *Runtime) ClearContents(pb native.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pb != r.pasteboard {
		return 0
	}
	r.clear()
	r.changes++
	return r.changes
}

func (r *Runtime) WriteObjects(pb, array native.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	arr := r.get(array, kindArray)
	if r.faults[FaultWriteObjects] || pb != r.pasteboard || arr == nil {
		return false
	}
	for _, e := range arr.elems {
		if r.get(e, kindItem) == nil {
			return false
		}
	}
	for _, e := range arr.elems {
		r.objs[e].refs++
		r.contents = append(r.contents, e)
	}
	r.changes++
	return true
}

func (r *Runtime) Types(item native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.get(item, kindItem)
	if r.faults[FaultTypes] || it == nil {
		return native.Nil
	}
	strs := make([]native.ID, len(it.reps))
	for i, rep := range it.reps {
		strs[i] = r.alloc(&object{kind: kindString, refs: 1, str: rep.Type})
	}
	arr := r.newArray(strs)
	for _, s := range strs {
		r.release(s)
	}
	return r.autorelease(arr)
}

func (r *Runtime) DataForType(item, typ native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, t := r.get(item, kindItem), r.get(typ, kindString)
	if r.faults[FaultDataForType] || it == nil || t == nil {
		return native.Nil
	}
	for _, rep := range it.reps {
		if rep.Type == t.str {
			if rep.Data == nil {
				return native.Nil
			}
			return r.autorelease(r.alloc(&object{kind: kindData, refs: 1, data: cloneBytes(rep.Data)}))
		}
	}
	return native.Nil
}

// SetDataForType rejects an empty type string, as NSPasteboardItem
// rejects malformed type identifiers.
func (r *Runtime) SetDataForType(item, data, typ native.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, d, t := r.get(item, kindItem), r.get(data, kindData), r.get(typ, kindString)
	if r.faults[FaultSetData] || it == nil || d == nil || t == nil || t.str == "" {
		return false
	}
	rep := Rep{Type: t.str, Data: cloneBytes(d.data)}
	for i := range it.reps {
		if it.reps[i].Type == t.str {
			it.reps[i] = rep
			return true
		}
	}
	it.reps = append(it.reps, rep)
	return true
}

func (r *Runtime) Count(array native.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if arr := r.get(array, kindArray); arr != nil {
		return len(arr.elems)
	}
	return 0
}

func (r *Runtime) ObjectAtIndex(array native.ID, i int) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	arr := r.get(array, kindArray)
	if r.faults[FaultObjectAtIndex] || arr == nil || i < 0 || i >= len(arr.elems) {
		return native.Nil
	}
	if o := r.objs[arr.elems[i]]; r.faults[FaultTypeAtIndex] && o != nil && o.kind == kindString {
		return native.Nil
	}
	return arr.elems[i]
}

func (r *Runtime) NewArray(cls native.ID, objs []native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultNewArray] || !r.isClass(cls, ClassArray) {
		return native.Nil
	}
	for _, o := range objs {
		if r.objs[o] == nil {
			return native.Nil
		}
	}
	return r.newArray(objs)
}

func (r *Runtime) New(cls native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultNew] || !r.isClass(cls, ClassPasteboardItem) {
		return native.Nil
	}
	return r.alloc(&object{kind: kindItem, refs: 1})
}

func (r *Runtime) NewData(b []byte) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultNewData] {
		return native.Nil
	}
	return r.alloc(&object{kind: kindData, refs: 1, data: append([]byte{}, b...)})
}

func (r *Runtime) NewString(s string) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults[FaultNewString] {
		return native.Nil
	}
	return r.alloc(&object{kind: kindString, refs: 1, str: s})
}

func (r *Runtime) Bytes(data native.ID) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.get(data, kindData); d != nil {
		return cloneBytes(d.data)
	}
	return []byte{}
}

func (r *Runtime) String(str native.ID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.get(str, kindString); s != nil {
		return s.str
	}
	return ""
}

func (r *Runtime) Retain(id native.ID) native.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.objs[id]
	if o == nil {
		return native.Nil
	}
	if o.kind != kindClass {
		o.refs++
	}
	return id
}

func (r *Runtime) Release(id native.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release(id)
}

func (r *Runtime) PushPool() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, nil)
	return uintptr(len(r.pools))
}

// PopPool drains pool and every pool pushed after it.
func (r *Runtime) PopPool(pool uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uintptr(len(r.pools)) >= pool && len(r.pools) > 0 {
		top := r.pools[len(r.pools)-1]
		r.pools = r.pools[:len(r.pools)-1]
		for _, id := range top {
			r.release(id)
		}
	}
}

func (r *Runtime) alloc(o *object) native.ID {
	id := r.next
	r.next += 0x10
	r.objs[id] = o
	return id
}

func (r *Runtime) get(id native.ID, k kind) *object {
	if o := r.objs[id]; o != nil && o.kind == k {
		return o
	}
	return nil
}

func (r *Runtime) isClass(id native.ID, name string) bool {
	o := r.get(id, kindClass)
	return o != nil && o.class == name
}

func (r *Runtime) newArray(elems []native.ID) native.ID {
	cp := make([]native.ID, len(elems))
	copy(cp, elems)
	for _, e := range cp {
		r.objs[e].refs++
	}
	return r.alloc(&object{kind: kindArray, refs: 1, elems: cp})
}

func (r *Runtime) autorelease(id native.ID) native.ID {
	if len(r.pools) == 0 {
		r.stray++
		return id
	}
	top := len(r.pools) - 1
	r.pools[top] = append(r.pools[top], id)
	return id
}

func (r *Runtime) release(id native.ID) {
	o := r.objs[id]
	if o == nil {
		r.overReleased++
		return
	}
	if o.kind == kindClass {
		return
	}
	o.refs--
	if o.refs > 0 {
		return
	}
	delete(r.objs, id)
	for _, e := range o.elems {
		r.release(e)
	}
}

func (r *Runtime) clear() {
	old := r.contents
	r.contents = nil
	for _, id := range old {
		r.release(id)
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
