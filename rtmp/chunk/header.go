package chunk

import (
	"errors"

	"github.com/datarhei/relay/rtmp/bits"
)

// Fmt selects which message header fields are present in a chunk.
type Fmt uint8

const (
	FmtFull    Fmt = 0
	FmtMedium  Fmt = 1
	FmtSmall   Fmt = 2
	FmtMinimal Fmt = 3
)

const extendedTimestamp = 0xFFFFFF

var messageHeaderSize = [4]int{11, 7, 3, 0}

var ErrNoPreviousHeader = errors.New("chunk: compressed header without previous header")

// Header is the decoded header of a chunk. Timestamp is always the absolute
// timestamp.
type Header struct {
	Fmt       Fmt
	CSID      uint32
	Timestamp uint32
	Length    uint32
	TypeID    uint8
	StreamID  uint32

	// Delta is the timestamp delta of the last fmt 1 or fmt 2 header, or 0 after
	// a fmt 0 header.
	Delta uint32

	// Extended is set if the timestamp field uses the extended form. Chunks with
	// fmt 3 repeat the extended timestamp in that case.
	Extended bool

	raw uint32
}

// AppendBasicHeader appends the 1, 2 or 3 byte basic header. The csid must be
// in the range 2..65599.
func AppendBasicHeader(dst []byte, fmt Fmt, csid uint32) []byte {
	first := byte(fmt) << 6

	switch {
	case csid < 64:
		return append(dst, first|byte(csid))
	case csid < 320:
		return append(dst, first, byte(csid-64))
	}

	return bits.AppendU16BE(append(dst, first|1), uint16(csid-64))
}

// DecodeBasicHeader returns the fmt, the chunk stream id and the size of the
// basic header. The size is 0 if b is too short.
func DecodeBasicHeader(b []byte) (Fmt, uint32, int) {
	if len(b) == 0 {
		return 0, 0, 0
	}

	fmt := Fmt(b[0] >> 6)

	switch b[0] & 0x3F {
	case 0:
		if len(b) < 2 {
			return 0, 0, 0
		}
		return fmt, 64 + uint32(b[1]), 2
	case 1:
		if len(b) < 3 {
			return 0, 0, 0
		}
		return fmt, 64 + uint32(bits.U16BE(b[1:])), 3
	}

	return fmt, uint32(b[0] & 0x3F), 1
}

// AppendHeader encodes the basic and the message header of h into dst, based
// on h.Fmt. The timestamp is converted into the delta form for fmt 1 and fmt 2
// relative to last. last may only be nil for fmt 0. The fields of h derived
// from the encoding (Delta, Extended) are updated such that h can serve as
// last for the next header.
func AppendHeader(dst []byte, h *Header, last *Header) []byte {
	var raw uint32

	switch h.Fmt {
	case FmtFull:
		raw = h.Timestamp
		h.Delta = 0
	case FmtMedium, FmtSmall:
		raw = h.Timestamp - last.Timestamp
		h.Delta = raw
	default:
		raw = last.raw
		h.Delta = last.Delta
		h.Extended = last.Extended
	}

	if h.Fmt != FmtMinimal {
		h.Extended = raw >= extendedTimestamp
	}

	h.raw = raw

	dst = AppendBasicHeader(dst, h.Fmt, h.CSID)

	field := raw
	if h.Extended {
		field = extendedTimestamp
	}

	switch h.Fmt {
	case FmtFull:
		dst = bits.AppendU24BE(dst, field)
		dst = bits.AppendU24BE(dst, h.Length)
		dst = append(dst, h.TypeID)
		dst = bits.AppendU32LE(dst, h.StreamID)
	case FmtMedium:
		dst = bits.AppendU24BE(dst, field)
		dst = bits.AppendU24BE(dst, h.Length)
		dst = append(dst, h.TypeID)
	case FmtSmall:
		dst = bits.AppendU24BE(dst, field)
	}

	if h.Extended {
		dst = bits.AppendU32BE(dst, raw)
	}

	return dst
}

// DecodeHeader decodes the basic and the message header at the beginning of
// b. Fields that are not present are inherited from last. Timestamps of fmt 1
// and fmt 2 headers are calibrated to absolute values, fmt 3 headers carry the
// timestamp of last. It returns the number of consumed bytes, 0 if b is too
// short.
func DecodeHeader(b []byte, last *Header) (Header, int, error) {
	fmt, csid, offset := DecodeBasicHeader(b)
	if offset == 0 {
		return Header{}, 0, nil
	}

	if fmt != FmtFull && last == nil {
		return Header{}, 0, ErrNoPreviousHeader
	}

	size := messageHeaderSize[fmt]
	if len(b) < offset+size {
		return Header{}, 0, nil
	}

	h := Header{}
	if last != nil {
		h = *last
	}

	h.Fmt = fmt
	h.CSID = csid

	m := b[offset:]
	raw := uint32(0)

	switch fmt {
	case FmtFull:
		raw = bits.U24BE(m)
		h.Length = bits.U24BE(m[3:])
		h.TypeID = m[6]
		h.StreamID = bits.U32LE(m[7:])
	case FmtMedium:
		raw = bits.U24BE(m)
		h.Length = bits.U24BE(m[3:])
		h.TypeID = m[6]
	case FmtSmall:
		raw = bits.U24BE(m)
	}

	offset += size

	if fmt != FmtMinimal {
		h.Extended = raw == extendedTimestamp
	}

	if h.Extended {
		if len(b) < offset+4 {
			return Header{}, 0, nil
		}

		if fmt != FmtMinimal {
			raw = bits.U32BE(b[offset:])
		}

		offset += 4
	}

	switch fmt {
	case FmtFull:
		h.Timestamp = raw
		h.Delta = 0
		h.raw = raw
	case FmtMedium, FmtSmall:
		h.Timestamp = last.Timestamp + raw
		h.Delta = raw
		h.raw = raw
	}

	return h, offset, nil
}
