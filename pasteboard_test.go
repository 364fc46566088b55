package pasteboard_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/pasteboard"
	"go.klb.dev/pasteboard/native/memnative"
)

const (
	utf8Text = "public.utf8-plain-text"
	pngType  = "public.png"
)

func newContext(t *testing.T, rt *memnative.Runtime, opts ...pasteboard.Option) *pasteboard.Context {
	t.Helper()
	opts = append([]pasteboard.Option{pasteboard.WithRuntime(rt)}, opts...)
	c, err := pasteboard.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// requireBalanced closes c and asserts every native reference was released.
func requireBalanced(t *testing.T, rt *memnative.Runtime, c *pasteboard.Context) {
	t.Helper()
	require.NoError(t, c.Close())
	require.NoError(t, rt.Check())
}

func TestRoundTrip(t *testing.T) {
	large := bytes.Repeat([]byte{0x00, 0xff, 0x7f, 0x80}, 1<<18)
	tests := []struct {
		name string
		data []byte
		typ  string
	}{
		{"text", []byte("hello, pasteboard"), utf8Text},
		{"binary with zeros", []byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0x0d}, pngType},
		{"multibyte type", []byte("ü"), "com.example.тип"},
		{"dynamic type", []byte(`{"a":1}`), "dyn.ah62d4rv4gu8y6y4grf0gn5xbrzw1gydcr7u1e3cytf2gn"},
		{"one megabyte", large, "com.example.blob"},
		{"single byte", []byte{0}, "public.data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := memnative.New()
			c := newContext(t, rt)

			require.NoError(t, c.Set(tt.data, tt.typ))
			data, typ, err := c.Get()
			require.NoError(t, err)
			assert.Equal(t, tt.data, data)
			assert.Equal(t, tt.typ, typ)

			requireBalanced(t, rt, c)
		})
	}
}

func TestRoundTripQuick(t *testing.T) {
	rt := memnative.New()
	c := newContext(t, rt)

	f := func(data []byte, n uint16) bool {
		if len(data) == 0 {
			data = []byte{byte(n)}
		}
		typ := fmt.Sprintf("com.example.t%d", n)
		if err := c.Set(data, typ); err != nil {
			return false
		}
		got, gotTyp, err := c.Get()
		return err == nil && bytes.Equal(got, data) && gotTyp == typ
	}
	require.NoError(t, quick.Check(f, nil))
	requireBalanced(t, rt, c)
}

func TestSetReplacesContents(t *testing.T) {
	rt := memnative.New()
	rt.Place(
		memnative.Item{{Type: utf8Text, Data: []byte("a")}, {Type: "public.html", Data: []byte("<b>a</b>")}},
		memnative.Item{{Type: pngType, Data: []byte{1}}},
	)
	c := newContext(t, rt)

	require.NoError(t, c.Set([]byte("first"), utf8Text))
	require.NoError(t, c.Set([]byte{0xde, 0xad}, pngType))

	data, typ, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, data)
	assert.Equal(t, pngType, typ)
	assert.Equal(t, []memnative.Item{{{Type: pngType, Data: []byte{0xde, 0xad}}}}, rt.Contents())

	requireBalanced(t, rt, c)
}

func TestGetEmptyPasteboard(t *testing.T) {
	rt := memnative.New()
	c := newContext(t, rt)
	require.NoError(t, c.Set([]byte("x"), utf8Text))
	rt.Clear()

	data, typ, err := c.Get()
	require.ErrorIs(t, err, pasteboard.ErrNoItems)
	var rerr *pasteboard.ReadError
	require.ErrorAs(t, err, &rerr)
	assert.Nil(t, data)
	assert.Empty(t, typ)
	assert.Equal(t, "pasteboard: read: pasteboardItems: no items present", err.Error())

	requireBalanced(t, rt, c)
}

func TestContextsShareThePasteboard(t *testing.T) {
	rt := memnative.New()

	a := newContext(t, rt)
	require.NoError(t, a.Set([]byte("from a"), utf8Text))
	require.NoError(t, a.Close())

	b := newContext(t, rt)
	data, typ, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "from a", string(data))
	assert.Equal(t, utf8Text, typ)

	c := newContext(t, rt)
	require.NoError(t, c.Set([]byte("from c"), utf8Text))
	data, _, err = b.Get()
	require.NoError(t, err)
	assert.Equal(t, "from c", string(data))

	require.NoError(t, b.Close())
	requireBalanced(t, rt, c)
}

func TestGetFirstItemFirstType(t *testing.T) {
	rt := memnative.New()
	rt.Place(
		memnative.Item{
			{Type: "public.rtf", Data: []byte(`{\rtf1 hi}`)},
			{Type: utf8Text, Data: []byte("hi")},
			{Type: "public.html", Data: []byte("<p>hi</p>")},
		},
		memnative.Item{{Type: utf8Text, Data: []byte("second item")}},
	)
	c := newContext(t, rt)

	for range 3 {
		data, typ, err := c.Get()
		require.NoError(t, err)
		assert.Equal(t, `{\rtf1 hi}`, string(data))
		assert.Equal(t, "public.rtf", typ)
	}
	assert.Len(t, rt.Contents(), 2, "read must not change the pasteboard")

	requireBalanced(t, rt, c)
}

func TestGetReturnsOwnedCopy(t *testing.T) {
	rt := memnative.New()
	c := newContext(t, rt)

	in := []byte("original")
	require.NoError(t, c.Set(in, utf8Text))
	in[0] = 'X'

	got, _, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
	got[0] = 'Y'

	again, _, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))

	requireBalanced(t, rt, c)
}

func TestNewFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*memnative.Runtime)
		opts    []pasteboard.Option
		wantErr error
		wantMsg string
	}{
		{
			name:    "class not registered",
			setup:   func(rt *memnative.Runtime) { rt.Unregister(memnative.ClassPasteboard) },
			wantErr: pasteboard.ErrClassLookup,
			wantMsg: "pasteboard: init: objc_getClass(NSPasteboard): class lookup failed",
		},
		{
			name:    "custom class name not registered",
			setup:   func(*memnative.Runtime) {},
			opts:    []pasteboard.Option{pasteboard.WithClassNames("NSNoSuchPasteboard", "", "")},
			wantErr: pasteboard.ErrClassLookup,
			wantMsg: "pasteboard: init: objc_getClass(NSNoSuchPasteboard): class lookup failed",
		},
		{
			name:    "null general pasteboard",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultGeneralPasteboard) },
			wantErr: pasteboard.ErrNullHandle,
			wantMsg: "pasteboard: init: generalPasteboard: service returned null handle",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := memnative.New()
			tt.setup(rt)

			opts := append([]pasteboard.Option{pasteboard.WithRuntime(rt)}, tt.opts...)
			c, err := pasteboard.New(opts...)
			require.Nil(t, c)
			require.ErrorIs(t, err, tt.wantErr)
			var ierr *pasteboard.InitError
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, 0, rt.ChangeCount())
			require.NoError(t, rt.Check())
		})
	}
}

func TestGetFailures(t *testing.T) {
	text := memnative.Item{{Type: utf8Text, Data: []byte("kept")}}
	tests := []struct {
		name    string
		place   []memnative.Item
		fault   memnative.Fault
		wantErr error
		wantOp  string
	}{
		{"null items collection", []memnative.Item{text}, memnative.FaultPasteboardItems, pasteboard.ErrNullItems, "pasteboardItems"},
		{"no items", nil, "", pasteboard.ErrNoItems, "pasteboardItems"},
		{"null first item", []memnative.Item{text}, memnative.FaultObjectAtIndex, pasteboard.ErrNullItem, "objectAtIndex:"},
		{"null first type", []memnative.Item{text}, memnative.FaultTypeAtIndex, pasteboard.ErrNullType, "objectAtIndex:"},
		{"null types list", []memnative.Item{text}, memnative.FaultTypes, pasteboard.ErrNullTypes, "types"},
		{"empty types list", []memnative.Item{{}}, "", pasteboard.ErrNoTypes, "types"},
		{"null data for type", []memnative.Item{{{Type: utf8Text}}}, "", pasteboard.ErrNullData, "dataForType:"},
		{"data for type rejected", []memnative.Item{text}, memnative.FaultDataForType, pasteboard.ErrNullData, "dataForType:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := memnative.New()
			rt.Place(tt.place...)
			c := newContext(t, rt)
			if tt.fault != "" {
				rt.Inject(tt.fault)
			}
			before, changes := rt.Contents(), rt.ChangeCount()

			data, typ, err := c.Get()
			require.ErrorIs(t, err, tt.wantErr)
			var rerr *pasteboard.ReadError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.wantOp, rerr.Op)
			assert.Nil(t, data)
			assert.Empty(t, typ)

			assert.Equal(t, before, rt.Contents())
			assert.Equal(t, changes, rt.ChangeCount())
			requireBalanced(t, rt, c)
		})
	}
}

func TestSetFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*memnative.Runtime)
		emptyType   bool
		wantErr     error
		wantOp      string
		wantCleared bool
	}{
		{
			name:    "item class not registered",
			setup:   func(rt *memnative.Runtime) { rt.Unregister(memnative.ClassPasteboardItem) },
			wantErr: pasteboard.ErrItemClassLookup,
			wantOp:  "objc_getClass(NSPasteboardItem)",
		},
		{
			name:    "new item is null",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultNew) },
			wantErr: pasteboard.ErrNullItem,
			wantOp:  "new",
		},
		{
			name:    "data conversion fails",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultNewData) },
			wantErr: pasteboard.ErrNullBuffer,
			wantOp:  "initWithBytes:length:",
		},
		{
			name:    "string conversion fails",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultNewString) },
			wantErr: pasteboard.ErrNullBuffer,
			wantOp:  "initWithBytes:length:encoding:",
		},
		{
			name:    "setData rejected",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultSetData) },
			wantErr: pasteboard.ErrSetData,
			wantOp:  "setData:forType:",
		},
		{
			name:      "setData rejects empty type",
			setup:     func(*memnative.Runtime) {},
			emptyType: true,
			wantErr:   pasteboard.ErrSetData,
			wantOp:    "setData:forType:",
		},
		{
			name:    "array class not registered",
			setup:   func(rt *memnative.Runtime) { rt.Unregister(memnative.ClassArray) },
			wantErr: pasteboard.ErrArrayClassLookup,
			wantOp:  "objc_getClass(NSArray)",
		},
		{
			name:    "array is null",
			setup:   func(rt *memnative.Runtime) { rt.Inject(memnative.FaultNewArray) },
			wantErr: pasteboard.ErrNullArray,
			wantOp:  "initWithObjects:count:",
		},
		{
			name:        "writeObjects rejected",
			setup:       func(rt *memnative.Runtime) { rt.Inject(memnative.FaultWriteObjects) },
			wantErr:     pasteboard.ErrWriteObjects,
			wantOp:      "writeObjects:",
			wantCleared: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := memnative.New()
			prior := memnative.Item{{Type: utf8Text, Data: []byte("prior")}}
			rt.Place(prior)
			c := newContext(t, rt)
			tt.setup(rt)

			typ := pngType
			if tt.emptyType {
				typ = ""
			}
			err := c.Set([]byte{1, 2, 3}, typ)
			require.ErrorIs(t, err, tt.wantErr)
			var werr *pasteboard.WriteError
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, tt.wantOp, werr.Op)
			assert.Equal(t, tt.wantCleared, werr.Cleared)

			if tt.wantCleared {
				assert.Empty(t, rt.Contents())
				_, _, err := c.Get()
				require.ErrorIs(t, err, pasteboard.ErrNoItems)
			} else {
				assert.Equal(t, []memnative.Item{prior}, rt.Contents())
			}
			requireBalanced(t, rt, c)
		})
	}
}

func TestSetRecoversAfterFault(t *testing.T) {
	rt := memnative.New()
	c := newContext(t, rt)

	rt.Inject(memnative.FaultWriteObjects)
	require.ErrorIs(t, c.Set([]byte("lost"), utf8Text), pasteboard.ErrWriteObjects)
	rt.Heal(memnative.FaultWriteObjects)

	require.NoError(t, c.Set([]byte("retry"), utf8Text))
	data, _, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "retry", string(data))
	requireBalanced(t, rt, c)
}

func TestItemClassLookup(t *testing.T) {
	tests := []struct {
		name  string
		cache bool
		want  int
	}{
		{"per call", false, 3},
		{"cached", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := memnative.New()
			c := newContext(t, rt, pasteboard.WithItemClassCache(tt.cache))
			for i := range 3 {
				require.NoError(t, c.Set([]byte{byte(i)}, pngType))
			}
			assert.Equal(t, tt.want, rt.Lookups(memnative.ClassPasteboardItem))
			requireBalanced(t, rt, c)
		})
	}
}

func TestClose(t *testing.T) {
	rt := memnative.New()
	c := newContext(t, rt)
	require.Error(t, rt.Check(), "open context holds a pasteboard reference")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.NoError(t, rt.Check())

	_, _, err := c.Get()
	require.ErrorIs(t, err, pasteboard.ErrClosed)
	var rerr *pasteboard.ReadError
	require.ErrorAs(t, err, &rerr)

	err = c.Set([]byte("x"), utf8Text)
	require.ErrorIs(t, err, pasteboard.ErrClosed)
	var werr *pasteboard.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, 0, rt.ChangeCount())
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rt := memnative.New()
	c := newContext(t, rt, pasteboard.WithLogger(logger))

	require.NoError(t, c.Set([]byte("hello"), utf8Text))
	require.NoError(t, c.Set([]byte{0, 1, 2, 3}, pngType))
	rt.Inject(memnative.FaultWriteObjects)
	require.Error(t, c.Set([]byte("gone"), utf8Text))

	out := buf.String()
	assert.Contains(t, out, `"msg":"pasteboard write"`)
	assert.Contains(t, out, `"preview":"hello"`)
	assert.Contains(t, out, `"size_bytes":4`)
	assert.Contains(t, out, `"level":"WARN","msg":"pasteboard cleared but not rewritten"`)
	assert.Contains(t, out, `"component":"pasteboard"`)
	assert.Equal(t, 1, strings.Count(out, "WARN"))
}

func TestErrorKindsAreDistinct(t *testing.T) {
	err := error(&pasteboard.WriteError{Op: "writeObjects:", Err: pasteboard.ErrWriteObjects})
	var rerr *pasteboard.ReadError
	var ierr *pasteboard.InitError
	assert.False(t, errors.As(err, &rerr))
	assert.False(t, errors.As(err, &ierr))
	assert.False(t, errors.Is(err, pasteboard.ErrSetData))
	assert.Equal(t, "pasteboard: write: writeObjects: writeObjects returned false", err.Error())
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pasteboard.ReadError{Op: "objectAtIndex:", Err: pasteboard.ErrNullItem}, "pasteboard: read: objectAtIndex: item is null"},
		{&pasteboard.ReadError{Op: "objectAtIndex:", Err: pasteboard.ErrNullType}, "pasteboard: read: objectAtIndex: type at index 0 is null"},
		{&pasteboard.ReadError{Op: "dataForType:", Err: pasteboard.ErrNullData}, "pasteboard: read: dataForType: data for type is null"},
		{&pasteboard.WriteError{Op: "setData:forType:", Err: pasteboard.ErrSetData}, "pasteboard: write: setData:forType: setData returned false"},
		{&pasteboard.WriteError{Op: "initWithObjects:count:", Err: pasteboard.ErrNullArray}, "pasteboard: write: initWithObjects:count: item array is null"},
		{&pasteboard.InitError{Op: "generalPasteboard", Err: pasteboard.ErrNullHandle}, "pasteboard: init: generalPasteboard: service returned null handle"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.NotContains(t, tt.err.Error(), "::")
		})
	}
}

func TestGetNullFirstTypeMessage(t *testing.T) {
	rt := memnative.New()
	rt.Place(memnative.Item{{Type: utf8Text, Data: []byte("x")}})
	c := newContext(t, rt)
	rt.Inject(memnative.FaultTypeAtIndex)

	_, _, err := c.Get()
	require.ErrorIs(t, err, pasteboard.ErrNullType)
	assert.Equal(t, "pasteboard: read: objectAtIndex: type at index 0 is null", err.Error())
	requireBalanced(t, rt, c)
}
