package amf

import (
	"math"
	"strings"
	"testing"

	"github.com/datarhei/relay/rtmp/bits"

	"github.com/stretchr/testify/require"
)

func sample() Value {
	return Object(map[string]Value{
		"app":      String("live"),
		"tcUrl":    String("rtmp://localhost/live"),
		"fpad":     Boolean(false),
		"audio":    Number(3575),
		"nothing":  Null(),
		"empty":    String(""),
		"metadata": EcmaArray(map[string]Value{"width": Number(1280), "height": Number(720)}),
		"nested":   Object(map[string]Value{"deeper": Object(map[string]Value{"x": Number(-0.5)})}),
	})
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		Number(0),
		Number(math.Copysign(0, -1)),
		Number(math.NaN()),
		Number(math.Inf(1)),
		Number(12345.678),
		Boolean(true),
		Boolean(false),
		String("NetConnection.Connect.Success"),
		String("\xff\xfe not utf8"),
		String(strings.Repeat("a", 0xFFFF)),
		String(strings.Repeat("a", 70000)),
		Null(),
		Object(nil),
		EcmaArray(nil),
		sample(),
	}

	for _, v := range values {
		data := Encode(v)

		d, n, err := Decode(data)
		require.NoError(t, err, v.String())
		require.Equal(t, len(data), n)
		require.True(t, Equal(v, d), "%s != %s", v.String(), d.String())
	}
}

func TestLongString(t *testing.T) {
	s := strings.Repeat("a", 70000)

	data := Encode(String(s))
	require.Equal(t, TypeLongString, data[0])
	require.Equal(t, uint32(70000), bits.U32BE(data[1:]))
	require.Len(t, data, 5+70000)

	require.Equal(t, TypeString, Encode(String(s[:0xFFFF]))[0])

	v, n, err := Decode([]byte{TypeLongString, 0x00, 0x00, 0x00, 0x02, 'o', 'k'})
	require.NoError(t, err)
	require.Equal(t, 7, n)

	str, ok := v.AsString()
	require.True(t, ok)
	require.Equal(t, "ok", str)

	_, n, err = Decode([]byte{TypeLongString, 0x00, 0x00, 0x00, 0x05, 'o', 'k'})
	require.ErrorIs(t, err, ErrShortBuffer)
	require.Equal(t, 0, n)

	_, _, err = Decode([]byte{TypeLongString, 0x00, 0x00})
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestEncodeLayout(t *testing.T) {
	require.Equal(t, []byte{0x02, 0x00, 0x04, 'p', 'l', 'a', 'y'}, Encode(String("play")))
	require.Equal(t, []byte{0x05}, Encode(Null()))
	require.Equal(t, []byte{0x01, 0x01}, Encode(Boolean(true)))
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x09}, Encode(Object(nil)))
	require.Equal(t, []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x09}, Encode(EcmaArray(nil)))

	data := Encode(EcmaArray(map[string]Value{"a": Null(), "b": Null()}))
	require.Equal(t, []byte{0x08, 0x00, 0x00, 0x00, 0x02}, data[:5])
	require.Equal(t, []byte{0x00, 0x00, 0x09}, data[len(data)-3:])
}

func TestEcmaArrayCountIsAdvisory(t *testing.T) {
	// count says 5, but only one property follows
	data := []byte{0x08, 0x00, 0x00, 0x00, 0x05, 0x00, 0x01, 'a', 0x05, 0x00, 0x00, 0x09}

	v, n, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, KindEcmaArray, v.Kind())
	require.Equal(t, 1, v.Len())

	a, ok := v.Get("a")
	require.True(t, ok)
	require.True(t, a.IsNull())
}

func TestDecodeTruncated(t *testing.T) {
	data := Encode(sample())

	for i := 0; i < len(data); i++ {
		_, n, err := Decode(data[:i])
		require.Error(t, err, "length %d", i)
		require.Equal(t, 0, n)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	for _, marker := range []byte{TypeStrictArray, TypeDate, TypeXMLDocument, TypeTypedObject, TypeAMF3} {
		data := []byte{marker, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

		_, n, err := Decode(data)
		require.ErrorIs(t, err, ErrUnsupportedType)
		require.Equal(t, 0, n)
	}

	_, _, err := Decode([]byte{0x42})
	require.ErrorIs(t, err, ErrMalformed)

	// unsupported value nested inside an object
	data := []byte{0x03, 0x00, 0x01, 'd', TypeDate, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x00, 0x00, 0x09}
	_, _, err = Decode(data)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeUndefined(t *testing.T) {
	v, n, err := Decode([]byte{TypeUndefined})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, v.IsNull())
}

func TestDecodeTooDeep(t *testing.T) {
	data := []byte{}
	for i := 0; i < 100; i++ {
		data = append(data, TypeObject, 0x00, 0x01, 'x')
	}
	data = append(data, TypeNull)

	_, _, err := Decode(data)
	require.ErrorIs(t, err, ErrTooDeep)
}

func TestDecodeArray(t *testing.T) {
	data := EncodeArray(String("connect"), Number(1), sample())

	values, err := DecodeArray(data)
	require.NoError(t, err)
	require.Len(t, values, 3)

	name, ok := values[0].AsString()
	require.True(t, ok)
	require.Equal(t, "connect", name)

	txn, ok := values[1].AsNumber()
	require.True(t, ok)
	require.Equal(t, float64(1), txn)

	app, ok := values[2].GetString("app")
	require.True(t, ok)
	require.Equal(t, "live", app)

	values, err = DecodeArray(append(EncodeArray(String("play")), TypeDate))
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Len(t, values, 1)
}

func TestMerge(t *testing.T) {
	cached := EcmaArray(map[string]Value{"width": Number(640), "encoder": String("obs")})
	update := Object(map[string]Value{"width": Number(1920), "height": Number(1080)})

	merged := cached.Merge(update)
	require.Equal(t, KindEcmaArray, merged.Kind())
	require.Equal(t, []string{"encoder", "height", "width"}, merged.Keys())

	width, _ := merged.Get("width")
	n, _ := width.AsNumber()
	require.Equal(t, float64(1920), n)

	// the original is untouched
	width, _ = cached.Get("width")
	n, _ = width.AsNumber()
	require.Equal(t, float64(640), n)

	merged = Null().Merge(update)
	require.Equal(t, 2, merged.Len())
}

func TestAccessors(t *testing.T) {
	v := String("x")
	_, ok := v.AsNumber()
	require.False(t, ok)
	_, ok = v.Get("x")
	require.False(t, ok)

	v.Set("x", Null())
	require.Equal(t, 0, v.Len())

	o := Object(nil)
	o.Set("x", Boolean(true))
	b, ok := o.Get("x")
	require.True(t, ok)
	flag, _ := b.AsBool()
	require.True(t, flag)

	require.Equal(t, `{x: true}`, o.String())
}
