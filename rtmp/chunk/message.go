// Package chunk implements the RTMP chunk stream layer: the chunk header codec
// and the (de)multiplexing of messages across chunk streams.
package chunk

// Message type ids
const (
	TypeSetChunkSize     uint8 = 1
	TypeAbort            uint8 = 2
	TypeAcknowledgement  uint8 = 3
	TypeUserControl      uint8 = 4
	TypeWindowAckSize    uint8 = 5
	TypeSetPeerBandwidth uint8 = 6
	TypeAudio            uint8 = 8
	TypeVideo            uint8 = 9
	TypeDataAMF3         uint8 = 0x0F
	TypeSharedObjectAMF3 uint8 = 0x10
	TypeCommandAMF3      uint8 = 0x11
	TypeDataAMF0         uint8 = 0x12
	TypeSharedObjectAMF0 uint8 = 0x13
	TypeCommandAMF0      uint8 = 0x14
	TypeAggregate        uint8 = 0x16
)

// Chunk stream ids used for outgoing messages
const (
	CSIDProtocolControl uint32 = 2
	CSIDCommand         uint32 = 3
	CSIDAudio           uint32 = 4
	CSIDVideo           uint32 = 5
	CSIDData            uint32 = 6
)

// MaxCSID is the largest chunk stream id the 3 byte basic header can carry.
const MaxCSID = 65599

// Message is a complete RTMP message.
type Message struct {
	CSID      uint32
	Timestamp uint32
	TypeID    uint8
	StreamID  uint32
	Body      []byte
}

// Length returns the length of the message body.
func (m *Message) Length() uint32 {
	return uint32(len(m.Body))
}

// IsControl returns whether the message is a protocol control message.
func (m *Message) IsControl() bool {
	return IsControl(m.TypeID)
}

// IsMedia returns whether the message carries audio or video.
func (m *Message) IsMedia() bool {
	return m.TypeID == TypeAudio || m.TypeID == TypeVideo
}

func IsControl(typeID uint8) bool {
	return typeID >= TypeSetChunkSize && typeID <= TypeSetPeerBandwidth
}

// CSIDFor returns the chunk stream id an outgoing message of the given type is
// sent on.
func CSIDFor(typeID uint8) uint32 {
	switch typeID {
	case TypeSetChunkSize, TypeAbort, TypeAcknowledgement, TypeUserControl, TypeWindowAckSize, TypeSetPeerBandwidth:
		return CSIDProtocolControl
	case TypeAudio:
		return CSIDAudio
	case TypeVideo:
		return CSIDVideo
	case TypeDataAMF0, TypeDataAMF3:
		return CSIDData
	}

	return CSIDCommand
}

// TypeName returns a readable name of a message type, for logging.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeSetChunkSize:
		return "SetChunkSize"
	case TypeAbort:
		return "Abort"
	case TypeAcknowledgement:
		return "Acknowledgement"
	case TypeUserControl:
		return "UserControl"
	case TypeWindowAckSize:
		return "WindowAckSize"
	case TypeSetPeerBandwidth:
		return "SetPeerBandwidth"
	case TypeAudio:
		return "Audio"
	case TypeVideo:
		return "Video"
	case TypeDataAMF3:
		return "DataAMF3"
	case TypeSharedObjectAMF3:
		return "SharedObjectAMF3"
	case TypeCommandAMF3:
		return "CommandAMF3"
	case TypeDataAMF0:
		return "DataAMF0"
	case TypeSharedObjectAMF0:
		return "SharedObjectAMF0"
	case TypeCommandAMF0:
		return "CommandAMF0"
	case TypeAggregate:
		return "Aggregate"
	}

	return "Unknown"
}
