package chunk

import (
	"bytes"
	"testing"

	"github.com/datarhei/relay/rtmp/bits"

	"github.com/stretchr/testify/require"
)

func body(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}

	return b
}

func TestFragmentationRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 127, 128, 129, 1000, 4096, 65536}
	chunkSizes := []uint32{1, 2, 100, 128, 4096, 60000}

	for _, chunkSize := range chunkSizes {
		for _, size := range sizes {
			enc := NewManager()
			enc.SetOutChunkSize(chunkSize)

			dec := NewManager()
			dec.SetInChunkSize(chunkSize)

			msg := &Message{Timestamp: 4711, TypeID: TypeVideo, StreamID: 1, Body: body(size)}
			data := enc.Encode(msg)

			n, err := dec.Parse(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n, "chunk size %d, message size %d", chunkSize, size)

			require.True(t, dec.HasMessage())
			got := dec.GetMessage()
			require.Equal(t, uint32(4711), got.Timestamp)
			require.Equal(t, TypeVideo, got.TypeID)
			require.Equal(t, uint32(1), got.StreamID)
			require.Equal(t, CSIDVideo, got.CSID)
			require.True(t, bytes.Equal(msg.Body, got.Body))
			require.False(t, dec.HasMessage())
			require.Nil(t, dec.GetMessage())
		}
	}
}

func TestParseByteByByte(t *testing.T) {
	enc := NewManager()
	dec := NewManager()

	msgs := []*Message{
		{Timestamp: 0, TypeID: TypeCommandAMF0, StreamID: 0, Body: body(300)},
		{Timestamp: 10, TypeID: TypeAudio, StreamID: 1, Body: body(20)},
		{Timestamp: 20, TypeID: TypeAudio, StreamID: 1, Body: body(20)},
		{Timestamp: 40, TypeID: TypeAudio, StreamID: 1, Body: body(21)},
		{Timestamp: 40, TypeID: TypeVideo, StreamID: 1, Body: body(500)},
	}

	data := []byte{}
	for _, msg := range msgs {
		data = enc.AppendEncode(data, msg)
	}

	buffer := []byte{}
	for _, c := range data {
		buffer = append(buffer, c)

		n, err := dec.Parse(buffer)
		require.NoError(t, err)
		buffer = buffer[n:]
	}

	require.Empty(t, buffer)

	for _, msg := range msgs {
		got := dec.GetMessage()
		require.NotNil(t, got)
		require.Equal(t, msg.Timestamp, got.Timestamp)
		require.Equal(t, msg.TypeID, got.TypeID)
		require.Equal(t, msg.StreamID, got.StreamID)
		require.Equal(t, msg.Body, got.Body)
	}

	require.Equal(t, uint64(len(data)), dec.InBytes())
}

func TestInterleavedChunkStreams(t *testing.T) {
	audio := NewEncodeStream(CSIDAudio)
	video := NewEncodeStream(CSIDVideo)

	a := audio.AppendEncode(nil, &Message{Timestamp: 5, TypeID: TypeAudio, StreamID: 1, Body: body(200)}, 100)
	v := video.AppendEncode(nil, &Message{Timestamp: 6, TypeID: TypeVideo, StreamID: 1, Body: body(150)}, 100)

	// audio chunk 1, video chunk 1, audio chunk 2, video chunk 2
	data := []byte{}
	data = append(data, a[:12+100]...)
	data = append(data, v[:12+100]...)
	data = append(data, a[12+100:]...)
	data = append(data, v[12+100:]...)

	dec := NewManager()
	dec.SetInChunkSize(100)

	n, err := dec.Parse(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	first := dec.GetMessage()
	require.Equal(t, TypeAudio, first.TypeID)
	require.Equal(t, body(200), first.Body)

	second := dec.GetMessage()
	require.Equal(t, TypeVideo, second.TypeID)
	require.Equal(t, body(150), second.Body)
}

func TestEncodeFmtSelection(t *testing.T) {
	s := NewEncodeStream(CSIDAudio)

	data := s.AppendEncode(nil, &Message{Timestamp: 100, TypeID: TypeAudio, StreamID: 1, Body: body(10)}, 128)
	require.Equal(t, FmtFull, Fmt(data[0]>>6))

	data = s.AppendEncode(nil, &Message{Timestamp: 120, TypeID: TypeAudio, StreamID: 1, Body: body(10)}, 128)
	require.Equal(t, FmtSmall, Fmt(data[0]>>6))
	require.Equal(t, uint32(20), bits.U24BE(data[1:]))

	data = s.AppendEncode(nil, &Message{Timestamp: 140, TypeID: TypeAudio, StreamID: 1, Body: body(11)}, 128)
	require.Equal(t, FmtMedium, Fmt(data[0]>>6))

	data = s.AppendEncode(nil, &Message{Timestamp: 140, TypeID: TypeVideo, StreamID: 1, Body: body(11)}, 128)
	require.Equal(t, FmtMedium, Fmt(data[0]>>6))

	// timestamps going backwards and stream id changes need a full header
	data = s.AppendEncode(nil, &Message{Timestamp: 10, TypeID: TypeVideo, StreamID: 1, Body: body(11)}, 128)
	require.Equal(t, FmtFull, Fmt(data[0]>>6))

	data = s.AppendEncode(nil, &Message{Timestamp: 10, TypeID: TypeVideo, StreamID: 2, Body: body(11)}, 128)
	require.Equal(t, FmtFull, Fmt(data[0]>>6))

	// continuation chunks
	data = s.AppendEncode(nil, &Message{Timestamp: 20, TypeID: TypeVideo, StreamID: 2, Body: body(300)}, 128)
	require.Equal(t, FmtMedium, Fmt(data[0]>>6))
	require.Len(t, data, 8+128+1+128+1+44)
	require.Equal(t, byte(0xC4), data[8+128])
	require.Equal(t, byte(0xC4), data[8+128+1+128])
}

func TestMinimalHeaderNewMessage(t *testing.T) {
	dec := NewManager()

	first := Header{Fmt: FmtFull, CSID: 4, Timestamp: 1000, Length: 2, TypeID: TypeAudio, StreamID: 1}
	second := Header{Fmt: FmtSmall, CSID: 4, Timestamp: 1020, Length: 2, TypeID: TypeAudio, StreamID: 1}

	data := AppendHeader(nil, &first, nil)
	data = append(data, 0xAF, 0x01)
	data = AppendHeader(data, &second, &first)
	data = append(data, 0xAF, 0x02)

	// a fmt 3 header for a new message applies the last delta
	data = append(data, 0xC4, 0xAF, 0x03)
	data = append(data, 0xC4, 0xAF, 0x04)

	n, err := dec.Parse(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	for _, ts := range []uint32{1000, 1020, 1040, 1060} {
		msg := dec.GetMessage()
		require.NotNil(t, msg)
		require.Equal(t, ts, msg.Timestamp)
		require.Equal(t, TypeAudio, msg.TypeID)
	}
}

func TestSetChunkSizeTakesEffectImmediately(t *testing.T) {
	enc := NewManager()

	size := make([]byte, 4)
	bits.PutU32BE(size, 4096)

	data := enc.Encode(&Message{TypeID: TypeSetChunkSize, Body: size})
	enc.SetOutChunkSize(4096)
	data = enc.AppendEncode(data, &Message{TypeID: TypeCommandAMF0, Body: body(1000)})

	dec := NewManager()

	n, err := dec.Parse(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, uint32(4096), dec.InChunkSize())

	msg := dec.GetMessage()
	require.Equal(t, TypeSetChunkSize, msg.TypeID)

	msg = dec.GetMessage()
	require.Equal(t, TypeCommandAMF0, msg.TypeID)
	require.Equal(t, body(1000), msg.Body)
}

func TestAbort(t *testing.T) {
	enc := NewManager()
	data := enc.Encode(&Message{TypeID: TypeVideo, StreamID: 1, Body: body(200)})

	abort := make([]byte, 4)
	bits.PutU32BE(abort, CSIDVideo)

	dec := NewManager()

	// only the first chunk of the video message
	n, err := dec.Parse(data[:12+128])
	require.NoError(t, err)
	require.Equal(t, 12+128, n)
	require.False(t, dec.HasMessage())

	n, err = dec.Parse(enc.Encode(&Message{TypeID: TypeAbort, Body: abort}))
	require.NoError(t, err)
	require.NotZero(t, n)
	require.Equal(t, TypeAbort, dec.GetMessage().TypeID)

	// the next message on the video chunk stream starts fresh
	data = enc.Encode(&Message{Timestamp: 40, TypeID: TypeVideo, StreamID: 1, Body: body(10)})
	_, err = dec.Parse(data)
	require.NoError(t, err)

	msg := dec.GetMessage()
	require.NotNil(t, msg)
	require.Equal(t, body(10), msg.Body)
}

func TestParseErrors(t *testing.T) {
	dec := NewManager()

	// fmt 1 on a chunk stream that has never been seen
	n, err := dec.Parse([]byte{0x43, 0, 0, 0, 0, 0, 1, 0x14, 0xAA})
	require.ErrorIs(t, err, ErrNoPreviousHeader)
	require.Equal(t, 0, n)

	n, err = dec.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestClear(t *testing.T) {
	enc := NewManager()
	dec := NewManager()

	enc.Encode(&Message{TypeID: TypeAudio, StreamID: 1, Body: body(10)})
	data := enc.Encode(&Message{Timestamp: 20, TypeID: TypeAudio, StreamID: 1, Body: body(10)})
	require.Equal(t, FmtSmall, Fmt(data[0]>>6))

	enc.ClearEncode()
	data = enc.Encode(&Message{Timestamp: 40, TypeID: TypeAudio, StreamID: 1, Body: body(10)})
	require.Equal(t, FmtFull, Fmt(data[0]>>6))

	dec.Parse(data)
	require.True(t, dec.HasMessage())

	dec.ClearDecode()
	require.False(t, dec.HasMessage())

	_, err := dec.Parse([]byte{0xC4})
	require.ErrorIs(t, err, ErrNoPreviousHeader)
}

func TestChunkSizeLimits(t *testing.T) {
	m := NewManager()

	m.SetInChunkSize(0)
	require.Equal(t, uint32(DefaultChunkSize), m.InChunkSize())

	m.SetInChunkSize(0xFFFFFFFF)
	require.Equal(t, uint32(MaxChunkSize), m.InChunkSize())

	m.SetOutChunkSize(60000)
	require.Equal(t, uint32(60000), m.OutChunkSize())
}

func TestCSIDFor(t *testing.T) {
	require.Equal(t, CSIDProtocolControl, CSIDFor(TypeSetChunkSize))
	require.Equal(t, CSIDProtocolControl, CSIDFor(TypeUserControl))
	require.Equal(t, CSIDProtocolControl, CSIDFor(TypeSetPeerBandwidth))
	require.Equal(t, CSIDCommand, CSIDFor(TypeCommandAMF0))
	require.Equal(t, CSIDAudio, CSIDFor(TypeAudio))
	require.Equal(t, CSIDVideo, CSIDFor(TypeVideo))
	require.Equal(t, CSIDData, CSIDFor(TypeDataAMF0))
}
