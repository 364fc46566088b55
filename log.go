package pasteboard

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const previewLen = 120

// logPayload logs a pasteboard read or write at DEBUG: the type and either a
// text preview or the byte size.
func logPayload(l *slog.Logger, event string, data []byte, typ string) {
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	if isText(typ) && utf8.Valid(data) {
		preview := string(data)
		if utf8.RuneCountInString(preview) > previewLen {
			preview = string([]rune(preview)[:previewLen]) + "…"
		}
		l.Debug(event, "type", typ, "preview", preview)
		return
	}
	l.Debug(event, "type", typ, "size_bytes", len(data))
}

func isText(typ string) bool {
	return strings.HasPrefix(typ, "text/") ||
		strings.Contains(typ, "plain-text") ||
		typ == "public.html" || typ == "public.rtf"
}
