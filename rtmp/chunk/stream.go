package chunk

// DecodeStream reassembles the messages of one chunk stream.
type DecodeStream struct {
	csid      uint32
	last      *Header
	remaining uint32
	waiting   bool
	body      []byte
	submit    func(*Message)
}

// NewDecodeStream creates a decode stream for the chunk stream id. Every
// complete message is handed to submit.
func NewDecodeStream(csid uint32, submit func(*Message)) *DecodeStream {
	return &DecodeStream{
		csid:    csid,
		waiting: true,
		submit:  submit,
	}
}

// Feed decodes one chunk from the beginning of b, using chunkSize as the
// maximum payload size. It returns the number of consumed bytes, 0 if b
// doesn't contain the whole chunk yet.
func (s *DecodeStream) Feed(b []byte, chunkSize uint32) (int, error) {
	h, n, err := DecodeHeader(b, s.last)
	if err != nil || n == 0 {
		return 0, err
	}

	continuation := !s.waiting

	if h.Fmt == FmtMinimal {
		if !continuation {
			// A new message with the previous header. Strictly, only fmt 2 headers
			// have to be used for this, but some encoders send fmt 3.
			h.Timestamp = s.last.Timestamp + s.last.Delta
		}
	} else if continuation {
		// A new header in the middle of a message, the partial message is lost.
		continuation = false
	}

	size := h.Length
	if continuation {
		size = s.remaining
	}

	if size > chunkSize {
		size = chunkSize
	}

	if len(b) < n+int(size) {
		return 0, nil
	}

	if !continuation {
		s.remaining = h.Length
		s.waiting = false
		s.body = s.body[:0]
	}

	s.body = append(s.body, b[n:n+int(size)]...)
	s.remaining -= size
	s.last = &h

	if s.remaining == 0 {
		s.extract()
	}

	return n + int(size), nil
}

func (s *DecodeStream) extract() {
	body := make([]byte, len(s.body))
	copy(body, s.body)

	msg := &Message{
		CSID:      s.csid,
		Timestamp: s.last.Timestamp,
		TypeID:    s.last.TypeID,
		StreamID:  s.last.StreamID,
		Body:      body,
	}

	s.waiting = true
	s.body = s.body[:0]

	if s.submit != nil {
		s.submit(msg)
	}
}

// Abort drops a partially received message.
func (s *DecodeStream) Abort() {
	s.waiting = true
	s.remaining = 0
	s.body = s.body[:0]
}

// Pending returns whether a message is partially received.
func (s *DecodeStream) Pending() bool {
	return !s.waiting
}

// EncodeStream splits messages into chunks for one chunk stream.
type EncodeStream struct {
	csid uint32
	last *Header
}

func NewEncodeStream(csid uint32) *EncodeStream {
	return &EncodeStream{
		csid: csid,
	}
}

// AppendEncode appends the chunks of msg to dst. The payload of each chunk is
// at most chunkSize bytes.
func (s *EncodeStream) AppendEncode(dst []byte, msg *Message, chunkSize uint32) []byte {
	h := Header{
		CSID:      s.csid,
		Timestamp: msg.Timestamp,
		Length:    msg.Length(),
		TypeID:    msg.TypeID,
		StreamID:  msg.StreamID,
	}

	switch {
	case s.last == nil, h.StreamID != s.last.StreamID, h.Timestamp < s.last.Timestamp:
		h.Fmt = FmtFull
	case h.Length != s.last.Length, h.TypeID != s.last.TypeID:
		h.Fmt = FmtMedium
	default:
		h.Fmt = FmtSmall
	}

	dst = AppendHeader(dst, &h, s.last)

	size := int(chunkSize)
	if size > len(msg.Body) {
		size = len(msg.Body)
	}

	dst = append(dst, msg.Body[:size]...)

	cont := Header{Fmt: FmtMinimal, CSID: s.csid}

	for offset := size; offset < len(msg.Body); offset += size {
		size = int(chunkSize)
		if offset+size > len(msg.Body) {
			size = len(msg.Body) - offset
		}

		dst = AppendHeader(dst, &cont, &h)
		dst = append(dst, msg.Body[offset:offset+size]...)
	}

	s.last = &h

	return dst
}
