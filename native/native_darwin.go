//go:build darwin

package native

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
)

const (
	// AppKit must be loaded for NSPasteboard to appear in the class registry.
	appKitPath  = "/System/Library/Frameworks/AppKit.framework/AppKit"
	libobjcPath = "/usr/lib/libobjc.A.dylib"

	nsUTF8StringEncoding = 4
)

var (
	selGeneralPasteboard    = objc.RegisterName("generalPasteboard")
	selPasteboardItems      = objc.RegisterName("pasteboardItems")
	selClearContents        = objc.RegisterName("clearContents")
	selWriteObjects         = objc.RegisterName("writeObjects:")
	selTypes                = objc.RegisterName("types")
	selDataForType          = objc.RegisterName("dataForType:")
	selSetDataForType       = objc.RegisterName("setData:forType:")
	selCount                = objc.RegisterName("count")
	selObjectAtIndex        = objc.RegisterName("objectAtIndex:")
	selInitWithObjectsCount = objc.RegisterName("initWithObjects:count:")
	selNew                  = objc.RegisterName("new")
	selAlloc                = objc.RegisterName("alloc")
	selInitWithBytesLength  = objc.RegisterName("initWithBytes:length:")
	selInitWithBytesLenEnc  = objc.RegisterName("initWithBytes:length:encoding:")
	selBytes                = objc.RegisterName("bytes")
	selLength               = objc.RegisterName("length")
	selUTF8String           = objc.RegisterName("UTF8String")
	selLengthOfBytes        = objc.RegisterName("lengthOfBytesUsingEncoding:")
	selRetain               = objc.RegisterName("retain")
	selRelease              = objc.RegisterName("release")
)

var (
	openOnce sync.Once
	openRT   *darwinRuntime
	openErr  error
)

type darwinRuntime struct {
	poolPush func() uintptr
	poolPop  func(uintptr)
}

// Open loads AppKit and returns the process-wide objc runtime binding.
func Open() (Runtime, error) {
	openOnce.Do(func() {
		if _, err := purego.Dlopen(appKitPath, purego.RTLD_NOW|purego.RTLD_GLOBAL); err != nil {
			openErr = fmt.Errorf("native: load AppKit: %w", err)
			return
		}
		lib, err := purego.Dlopen(libobjcPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			openErr = fmt.Errorf("native: load libobjc: %w", err)
			return
		}
		rt := &darwinRuntime{}
		purego.RegisterLibFunc(&rt.poolPush, lib, "objc_autoreleasePoolPush")
		purego.RegisterLibFunc(&rt.poolPop, lib, "objc_autoreleasePoolPop")
		openRT = rt
	})
	if openErr != nil {
		return nil, openErr
	}
	return openRT, nil
}

func (*darwinRuntime) LookupClass(name string) ID { return ID(objc.GetClass(name)) }

func (*darwinRuntime) GeneralPasteboard(cls ID) ID {
	return ID(objc.ID(cls).Send(selGeneralPasteboard))
}

func (*darwinRuntime) PasteboardItems(pb ID) ID {
	return ID(objc.ID(pb).Send(selPasteboardItems))
}

func (*darwinRuntime) ClearContents(pb ID) int {
	return objc.Send[int](objc.ID(pb), selClearContents)
}

func (*darwinRuntime) WriteObjects(pb, array ID) bool {
	return objc.Send[bool](objc.ID(pb), selWriteObjects, objc.ID(array))
}

func (*darwinRuntime) Types(item ID) ID { return ID(objc.ID(item).Send(selTypes)) }

func (*darwinRuntime) DataForType(item, typ ID) ID {
	return ID(objc.ID(item).Send(selDataForType, objc.ID(typ)))
}

func (*darwinRuntime) SetDataForType(item, data, typ ID) bool {
	return objc.Send[bool](objc.ID(item), selSetDataForType, objc.ID(data), objc.ID(typ))
}

func (*darwinRuntime) Count(array ID) int {
	return int(objc.Send[uint](objc.ID(array), selCount))
}

func (*darwinRuntime) ObjectAtIndex(array ID, i int) ID {
	return ID(objc.ID(array).Send(selObjectAtIndex, uint(i)))
}

func (*darwinRuntime) NewArray(cls ID, objs []ID) ID {
	arr := objc.ID(cls).Send(selAlloc)
	if arr == 0 {
		return Nil
	}
	ids := make([]objc.ID, len(objs))
	for i, o := range objs {
		ids[i] = objc.ID(o)
	}
	out := arr.Send(selInitWithObjectsCount, unsafe.Pointer(unsafe.SliceData(ids)), uint(len(ids)))
	runtime.KeepAlive(ids)
	return ID(out)
}

func (*darwinRuntime) New(cls ID) ID { return ID(objc.ID(cls).Send(selNew)) }

func (*darwinRuntime) NewData(b []byte) ID {
	cls := objc.GetClass("NSData")
	if cls == 0 {
		return Nil
	}
	obj := objc.ID(cls).Send(selAlloc)
	if obj == 0 {
		return Nil
	}
	out := obj.Send(selInitWithBytesLength, unsafe.Pointer(unsafe.SliceData(b)), uint(len(b)))
	runtime.KeepAlive(b)
	return ID(out)
}

func (*darwinRuntime) NewString(s string) ID {
	cls := objc.GetClass("NSString")
	if cls == 0 {
		return Nil
	}
	obj := objc.ID(cls).Send(selAlloc)
	if obj == 0 {
		return Nil
	}
	b := []byte(s)
	out := obj.Send(selInitWithBytesLenEnc, unsafe.Pointer(unsafe.SliceData(b)), uint(len(b)), uint(nsUTF8StringEncoding))
	runtime.KeepAlive(b)
	return ID(out)
}

func (*darwinRuntime) Bytes(data ID) []byte {
	n := objc.Send[uint](objc.ID(data), selLength)
	if n == 0 {
		return []byte{}
	}
	p := objc.Send[unsafe.Pointer](objc.ID(data), selBytes)
	if p == nil {
		return []byte{}
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(p), n))
	return out
}

func (*darwinRuntime) String(str ID) string {
	p := objc.Send[unsafe.Pointer](objc.ID(str), selUTF8String)
	if p == nil {
		return ""
	}
	n := objc.Send[uint](objc.ID(str), selLengthOfBytes, uint(nsUTF8StringEncoding))
	return string(unsafe.Slice((*byte)(p), n))
}

func (*darwinRuntime) Retain(id ID) ID { return ID(objc.ID(id).Send(selRetain)) }
func (*darwinRuntime) Release(id ID)   { objc.ID(id).Send(selRelease) }

func (rt *darwinRuntime) PushPool() uintptr    { return rt.poolPush() }
func (rt *darwinRuntime) PopPool(pool uintptr) { rt.poolPop(pool) }
