//go:build !darwin

package native

// Open returns ErrUnsupported: NSPasteboard only exists on macOS.
func Open() (Runtime, error) { return nil, ErrUnsupported }
