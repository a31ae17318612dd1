package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicHeaderBoundaries(t *testing.T) {
	tests := []struct {
		csid uint32
		data []byte
	}{
		{2, []byte{0x02}},
		{63, []byte{0x3F}},
		{64, []byte{0x00, 0x00}},
		{319, []byte{0x00, 0xFF}},
		{320, []byte{0x01, 0x01, 0x00}},
		{MaxCSID, []byte{0x01, 0xFF, 0xFF}},
	}

	for _, test := range tests {
		data := AppendBasicHeader(nil, FmtFull, test.csid)
		require.Equal(t, test.data, data, "csid %d", test.csid)

		fmt, csid, n := DecodeBasicHeader(data)
		require.Equal(t, FmtFull, fmt)
		require.Equal(t, test.csid, csid)
		require.Equal(t, len(data), n)

		_, _, n = DecodeBasicHeader(data[:len(data)-1])
		require.Equal(t, 0, n)
	}

	data := AppendBasicHeader(nil, FmtMinimal, 3)
	require.Equal(t, []byte{0xC3}, data)

	data = AppendBasicHeader(nil, FmtSmall, 320)
	require.Equal(t, []byte{0x81, 0x01, 0x00}, data)
}

func TestHeaderRoundTrip(t *testing.T) {
	last := &Header{
		Fmt:       FmtFull,
		CSID:      4,
		Timestamp: 1000,
		Length:    300,
		TypeID:    TypeAudio,
		StreamID:  1,
	}

	// establish raw state of last
	AppendHeader(nil, last, nil)

	tests := []struct {
		name string
		h    Header
		size int
	}{
		{"full", Header{Fmt: FmtFull, CSID: 4, Timestamp: 5000, Length: 42, TypeID: TypeVideo, StreamID: 7}, 12},
		{"medium", Header{Fmt: FmtMedium, CSID: 4, Timestamp: 1040, Length: 42, TypeID: TypeVideo, StreamID: 1}, 8},
		{"small", Header{Fmt: FmtSmall, CSID: 4, Timestamp: 1023, Length: 300, TypeID: TypeAudio, StreamID: 1}, 4},
		{"minimal", Header{Fmt: FmtMinimal, CSID: 4, Timestamp: 1000, Length: 300, TypeID: TypeAudio, StreamID: 1}, 1},
		{"large csid", Header{Fmt: FmtFull, CSID: 1000, Timestamp: 1, Length: 1, TypeID: TypeDataAMF0, StreamID: 1}, 14},
	}

	for _, test := range tests {
		h := test.h
		data := AppendHeader(nil, &h, last)
		require.Len(t, data, test.size, test.name)

		d, n, err := DecodeHeader(data, last)
		require.NoError(t, err, test.name)
		require.Equal(t, len(data), n, test.name)
		require.Equal(t, test.h.Fmt, d.Fmt, test.name)
		require.Equal(t, test.h.CSID, d.CSID, test.name)
		require.Equal(t, test.h.Timestamp, d.Timestamp, test.name)
		require.Equal(t, test.h.Length, d.Length, test.name)
		require.Equal(t, test.h.TypeID, d.TypeID, test.name)
		require.Equal(t, test.h.StreamID, d.StreamID, test.name)

		for i := 0; i < len(data); i++ {
			_, n, err := DecodeHeader(data[:i], last)
			require.NoError(t, err)
			require.Equal(t, 0, n)
		}
	}
}

func TestHeaderLayout(t *testing.T) {
	h := Header{Fmt: FmtFull, CSID: 3, Timestamp: 0x010203, Length: 0x040506, TypeID: TypeCommandAMF0, StreamID: 1}

	data := AppendHeader(nil, &h, nil)
	require.Equal(t, []byte{
		0x03,
		0x01, 0x02, 0x03,
		0x04, 0x05, 0x06,
		0x14,
		0x01, 0x00, 0x00, 0x00,
	}, data)
}

func TestExtendedTimestamp(t *testing.T) {
	h := Header{Fmt: FmtFull, CSID: 5, Timestamp: 0x01000000, Length: 10, TypeID: TypeVideo, StreamID: 1}

	data := AppendHeader(nil, &h, nil)
	require.Len(t, data, 1+11+4)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, data[1:4])
	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, data[12:16])
	require.True(t, h.Extended)

	d, n, err := DecodeHeader(data, nil)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, uint32(0x01000000), d.Timestamp)
	require.True(t, d.Extended)

	// continuation chunks repeat the extended timestamp
	cont := Header{Fmt: FmtMinimal, CSID: 5}
	data = AppendHeader(nil, &cont, &h)
	require.Equal(t, []byte{0xC5, 0x01, 0x00, 0x00, 0x00}, data)

	c, n, err := DecodeHeader(data, &d)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, uint32(0x01000000), c.Timestamp)

	_, n, err = DecodeHeader(data[:3], &d)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// exactly 0xFFFFFF is encoded in the extended form as well
	h = Header{Fmt: FmtFull, CSID: 5, Timestamp: 0xFFFFFF, Length: 10, TypeID: TypeVideo, StreamID: 1}
	data = AppendHeader(nil, &h, nil)
	require.Len(t, data, 16)

	d, _, err = DecodeHeader(data, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFFF), d.Timestamp)
}

func TestExtendedTimestampDelta(t *testing.T) {
	last := Header{Fmt: FmtFull, CSID: 5, Timestamp: 100, Length: 10, TypeID: TypeVideo, StreamID: 1}
	AppendHeader(nil, &last, nil)

	h := Header{Fmt: FmtSmall, CSID: 5, Timestamp: 100 + 0x02000000, Length: 10, TypeID: TypeVideo, StreamID: 1}
	data := AppendHeader(nil, &h, &last)
	require.Len(t, data, 1+3+4)

	d, _, err := DecodeHeader(data, &last)
	require.NoError(t, err)
	require.Equal(t, h.Timestamp, d.Timestamp)
	require.Equal(t, uint32(0x02000000), d.Delta)
}

func TestDecodeWithoutPreviousHeader(t *testing.T) {
	for _, fmt := range []Fmt{FmtMedium, FmtSmall, FmtMinimal} {
		data := AppendBasicHeader(nil, fmt, 3)
		data = append(data, make([]byte, 11)...)

		_, n, err := DecodeHeader(data, nil)
		require.ErrorIs(t, err, ErrNoPreviousHeader)
		require.Equal(t, 0, n)
	}
}
