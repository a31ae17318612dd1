package amf

import (
	"errors"
	"fmt"

	"github.com/datarhei/relay/rtmp/bits"
)

// Type markers
const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeEcmaArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
	TypeUnsupported byte = 0x0D
	TypeRecordSet   byte = 0x0E
	TypeXMLDocument byte = 0x0F
	TypeTypedObject byte = 0x10
	TypeAMF3        byte = 0x11
)

const maxDepth = 32

var (
	ErrShortBuffer     = errors.New("amf: short buffer")
	ErrUnsupportedType = errors.New("amf: unsupported type")
	ErrMalformed       = errors.New("amf: malformed data")
	ErrTooDeep         = errors.New("amf: nesting too deep")
)

// Decode decodes a single value from the beginning of b. It returns the value
// and the number of bytes consumed. On error nothing is consumed.
func Decode(b []byte) (Value, int, error) {
	v, n, err := decode(b, 0)
	if err != nil {
		return Value{}, 0, err
	}

	return v, n, nil
}

// DecodeArray decodes consecutive values until b is exhausted. On error the
// values decoded so far are returned together with the error.
func DecodeArray(b []byte) ([]Value, error) {
	values := []Value{}

	for len(b) != 0 {
		v, n, err := decode(b, 0)
		if err != nil {
			return values, err
		}

		values = append(values, v)
		b = b[n:]
	}

	return values, nil
}

func decode(b []byte, depth int) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, ErrShortBuffer
	}

	if depth > maxDepth {
		return Value{}, 0, ErrTooDeep
	}

	switch b[0] {
	case TypeNumber:
		if len(b) < 9 {
			return Value{}, 0, ErrShortBuffer
		}
		return Number(bits.F64BE(b[1:])), 9, nil
	case TypeBoolean:
		if len(b) < 2 {
			return Value{}, 0, ErrShortBuffer
		}
		return Boolean(b[1] != 0), 2, nil
	case TypeString:
		s, n, err := decodeString(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		return String(s), 1 + n, nil
	case TypeLongString:
		s, n, err := decodeLongString(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		return String(s), 1 + n, nil
	case TypeNull, TypeUndefined:
		return Null(), 1, nil
	case TypeObject:
		props, n, err := decodeProperties(b[1:], depth)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{kind: KindObject, props: props}, 1 + n, nil
	case TypeEcmaArray:
		if len(b) < 5 {
			return Value{}, 0, ErrShortBuffer
		}
		// The element count is only a hint, the end marker terminates the array.
		props, n, err := decodeProperties(b[5:], depth)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{kind: KindEcmaArray, props: props}, 5 + n, nil
	case TypeStrictArray, TypeDate, TypeXMLDocument, TypeTypedObject, TypeAMF3,
		TypeMovieClip, TypeReference, TypeUnsupported, TypeRecordSet:
		return Value{}, 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedType, b[0])
	}

	return Value{}, 0, fmt.Errorf("%w: unknown marker 0x%02x", ErrMalformed, b[0])
}

func decodeString(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, ErrShortBuffer
	}

	size := int(bits.U16BE(b))
	if len(b) < 2+size {
		return "", 0, ErrShortBuffer
	}

	return string(b[2 : 2+size]), 2 + size, nil
}

func decodeLongString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, ErrShortBuffer
	}

	size := uint64(bits.U32BE(b))
	if uint64(len(b)) < 4+size {
		return "", 0, ErrShortBuffer
	}

	return string(b[4 : 4+size]), 4 + int(size), nil
}

func decodeProperties(b []byte, depth int) (map[string]Value, int, error) {
	props := map[string]Value{}
	offset := 0

	for {
		key, n, err := decodeString(b[offset:])
		if err != nil {
			return nil, 0, err
		}

		offset += n

		if len(key) == 0 {
			if offset >= len(b) {
				return nil, 0, ErrShortBuffer
			}

			if b[offset] != TypeObjectEnd {
				return nil, 0, fmt.Errorf("%w: missing object end marker", ErrMalformed)
			}

			return props, offset + 1, nil
		}

		v, n, err := decode(b[offset:], depth+1)
		if err != nil {
			return nil, 0, err
		}

		offset += n
		props[key] = v
	}
}

// Encode returns the AMF0 encoding of v.
func Encode(v Value) []byte {
	return AppendEncode(nil, v)
}

// EncodeArray encodes all values back to back, as used by command messages.
func EncodeArray(values ...Value) []byte {
	var b []byte

	for _, v := range values {
		b = AppendEncode(b, v)
	}

	return b
}

// AppendEncode appends the AMF0 encoding of v to dst.
func AppendEncode(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNumber:
		dst = append(dst, TypeNumber)
		dst = bits.AppendF64BE(dst, v.num)
	case KindBoolean:
		dst = append(dst, TypeBoolean)
		if v.flag {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case KindString:
		if len(v.str) > 0xFFFF {
			dst = append(dst, TypeLongString)
			dst = bits.AppendU32BE(dst, uint32(len(v.str)))
			dst = append(dst, v.str...)
			break
		}

		dst = append(dst, TypeString)
		dst = appendString(dst, v.str)
	case KindObject:
		dst = append(dst, TypeObject)
		dst = appendProperties(dst, v)
	case KindEcmaArray:
		dst = append(dst, TypeEcmaArray)
		dst = bits.AppendU32BE(dst, uint32(len(v.props)))
		dst = appendProperties(dst, v)
	default:
		dst = append(dst, TypeNull)
	}

	return dst
}

// appendString writes a u16 length prefixed string. Property names are the
// only strings that can't switch to the long form, they are cut at 65535 bytes.
func appendString(dst []byte, s string) []byte {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}

	dst = bits.AppendU16BE(dst, uint16(len(s)))

	return append(dst, s...)
}

func appendProperties(dst []byte, v Value) []byte {
	for _, k := range v.Keys() {
		dst = appendString(dst, k)
		dst = AppendEncode(dst, v.props[k])
	}

	return append(dst, 0x00, 0x00, TypeObjectEnd)
}
