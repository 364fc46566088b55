package pasteboard

import (
	"log/slog"

	"go.klb.dev/pasteboard/native"
)

// Default class names resolved through the objc class registry.
const (
	DefaultPasteboardClass = "NSPasteboard"
	DefaultItemClass       = "NSPasteboardItem"
	DefaultArrayClass      = "NSArray"
)

type options struct {
	rt             native.Runtime
	logger         *slog.Logger
	pasteboardCls  string
	itemCls        string
	arrayCls       string
	cacheItemClass bool
}

// Option configures a Context.
type Option func(*options)

// WithRuntime injects the native runtime. By default New uses native.Open.
func WithRuntime(rt native.Runtime) Option {
	return func(o *options) { o.rt = rt }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClassNames overrides the class names for the pasteboard, the
// pasteboard item and the array wrapping written items. Empty names keep the
// defaults.
func WithClassNames(pasteboard, item, array string) Option {
	return func(o *options) {
		if pasteboard != "" {
			o.pasteboardCls = pasteboard
		}
		if item != "" {
			o.itemCls = item
		}
		if array != "" {
			o.arrayCls = array
		}
	}
}

// WithItemClassCache makes Set resolve the item class once and reuse it.
// Off by default: the class is looked up on every write.
func WithItemClassCache(on bool) Option {
	return func(o *options) { o.cacheItemClass = on }
}
