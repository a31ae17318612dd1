// Package bits provides the fixed width integer and float codecs used by the
// RTMP framing layers. All functions expect the slice to be large enough.
package bits

import (
	"encoding/binary"
	"math"
)

func U16BE(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func PutU16BE(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

func U24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func PutU24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func U32BE(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func PutU32BE(b []byte, v uint32) {
	binary.BigEndian.PutUint32(b, v)
}

func U32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func PutU32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// F64BE reads an IEEE-754 double in network byte order.
func F64BE(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func PutF64BE(b []byte, v float64) {
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
}

// AppendU24BE appends v as a 3 byte big-endian integer.
func AppendU24BE(b []byte, v uint32) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}

func AppendU16BE(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

func AppendU32BE(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func AppendU32LE(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func AppendF64BE(b []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(b, math.Float64bits(v))
}
