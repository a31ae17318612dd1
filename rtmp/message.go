package rtmp

import (
	"github.com/datarhei/relay/rtmp/amf"
	"github.com/datarhei/relay/rtmp/bits"
	"github.com/datarhei/relay/rtmp/chunk"
)

// Status codes sent with onStatus, _result and _error
const (
	CodeConnectSuccess  = "NetConnection.Connect.Success"
	CodeConnectRejected = "NetConnection.Connect.Rejected"

	CodePublishStart         = "NetStream.Publish.Start"
	CodePublishBadName       = "NetStream.Publish.BadName"
	CodePublishBadConnection = "NetStream.Publish.BadConnection"
	CodeUnpublishSuccess     = "NetStream.Unpublish.Success"

	CodePlayReset          = "NetStream.Play.Reset"
	CodePlayStart          = "NetStream.Play.Start"
	CodePlayFailed         = "NetStream.Play.Failed"
	CodePlayStreamNotFound = "NetStream.Play.StreamNotFound"
	CodePlayUnpublish      = "NetStream.Play.UnpublishNotify"
)

const (
	levelStatus = "status"
	levelError  = "error"
)

// User control event types
const (
	eventStreamBegin  uint16 = 0
	eventStreamEOF    uint16 = 1
	eventPingRequest  uint16 = 6
	eventPingResponse uint16 = 7
)

const (
	defaultWindowAckSize = 5000000
	defaultPeerBandwidth = 5000000
	peerBandwidthDynamic = 2
)

func newControl(typeID uint8, body []byte) *chunk.Message {
	return &chunk.Message{
		CSID:   chunk.CSIDProtocolControl,
		TypeID: typeID,
		Body:   body,
	}
}

func newSetChunkSize(size uint32) *chunk.Message {
	return newControl(chunk.TypeSetChunkSize, bits.AppendU32BE(nil, size&0x7FFFFFFF))
}

func newWindowAckSize(size uint32) *chunk.Message {
	return newControl(chunk.TypeWindowAckSize, bits.AppendU32BE(nil, size))
}

func newAcknowledgement(received uint32) *chunk.Message {
	return newControl(chunk.TypeAcknowledgement, bits.AppendU32BE(nil, received))
}

func newSetPeerBandwidth(size uint32, limit uint8) *chunk.Message {
	return newControl(chunk.TypeSetPeerBandwidth, append(bits.AppendU32BE(nil, size), limit))
}

func newUserControl(event uint16, value uint32) *chunk.Message {
	body := bits.AppendU16BE(nil, event)
	body = bits.AppendU32BE(body, value)

	return newControl(chunk.TypeUserControl, body)
}

// newCommand builds an AMF0 command message.
func newCommand(streamID uint32, values ...amf.Value) *chunk.Message {
	return &chunk.Message{
		CSID:     chunk.CSIDCommand,
		TypeID:   chunk.TypeCommandAMF0,
		StreamID: streamID,
		Body:     amf.EncodeArray(values...),
	}
}

// newData builds an AMF0 data message.
func newData(streamID uint32, values ...amf.Value) *chunk.Message {
	return &chunk.Message{
		CSID:     chunk.CSIDData,
		TypeID:   chunk.TypeDataAMF0,
		StreamID: streamID,
		Body:     amf.EncodeArray(values...),
	}
}

func newResult(txn float64, values ...amf.Value) *chunk.Message {
	return newCommand(0, append([]amf.Value{amf.String("_result"), amf.Number(txn)}, values...)...)
}

func newError(txn float64, values ...amf.Value) *chunk.Message {
	return newCommand(0, append([]amf.Value{amf.String("_error"), amf.Number(txn)}, values...)...)
}

func statusObject(level, code, description string) amf.Value {
	return amf.Object(map[string]amf.Value{
		"level":       amf.String(level),
		"code":        amf.String(code),
		"description": amf.String(description),
	})
}

func newStatus(streamID uint32, level, code, description string) *chunk.Message {
	return newCommand(streamID, amf.String("onStatus"), amf.Number(0), amf.Null(), statusObject(level, code, description))
}

func newMedia(typeID uint8, streamID uint32, timestamp uint32, data []byte) *chunk.Message {
	csid := chunk.CSIDVideo
	if typeID == chunk.TypeAudio {
		csid = chunk.CSIDAudio
	}

	return &chunk.Message{
		CSID:      csid,
		Timestamp: timestamp,
		TypeID:    typeID,
		StreamID:  streamID,
		Body:      data,
	}
}

// Sound formats and video codecs of the FLV tag header
const (
	soundFormatAAC = 10

	codecH263 = 2
	codecVP6  = 4
	codecAVC  = 7
	codecHEVC = 12
	codecAV1  = 13

	frameTypeKey = 1
)

// isAACSequenceHeader returns whether an audio payload is an AAC sequence header.
func isAACSequenceHeader(data []byte) bool {
	return len(data) >= 2 && data[0]>>4 == soundFormatAAC && data[1] == 0
}

// isVideoSequenceHeader returns whether a video payload is an AVC or HEVC
// decoder configuration record.
func isVideoSequenceHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}

	codec := data[0] & 0x0F

	return (codec == codecAVC || codec == codecHEVC) && data[1] == 0
}

// isKeyFrame returns whether a video payload is a key frame of a codec that
// knows key frames.
func isKeyFrame(data []byte) bool {
	if len(data) < 1 {
		return false
	}

	switch data[0] & 0x0F {
	case codecH263, codecVP6, codecAVC, codecHEVC, codecAV1:
	default:
		return false
	}

	return data[0]>>4 == frameTypeKey
}
