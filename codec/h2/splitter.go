package h2

import "github.com/flowgate/flowgate/frameheader"

type splitterStatus int

const (
	statusFrameDone splitterStatus = iota
	statusFrameDoneBufEmpty
	statusHeaderIncomplete
	statusPayloadIncomplete
)

// splitter cuts a stream of reads into frame headers and payload chunks
// without copying payload bytes. Headers may straddle read boundaries, so
// they are accumulated; payloads are handed out as they arrive.
type splitter struct {
	pending     frameheader.FrameHeader
	current     frameheader.FrameHeader
	payloadLeft int
	buf         []byte
}

func (s *splitter) fill(b []byte) { s.buf = b }

func (s *splitter) header() frameheader.FrameHeader { return s.current }

func (s *splitter) next() ([]byte, splitterStatus) {
	if len(s.pending) != frameheader.Len {
		need := frameheader.Len - len(s.pending)
		if len(s.buf) < need {
			s.pending = append(s.pending, s.buf...)
			return nil, statusHeaderIncomplete
		}
		s.pending = append(s.pending, s.buf[:need]...)
		s.buf = s.buf[need:]
		s.payloadLeft = s.pending.Length()
	}
	s.current = s.pending

	if len(s.buf) > s.payloadLeft {
		payload := s.buf[:s.payloadLeft]
		s.buf = s.buf[s.payloadLeft:]
		s.pending = s.pending[:0]
		return payload, statusFrameDone
	}

	if len(s.buf) == s.payloadLeft {
		s.pending = s.pending[:0]
		return s.buf, statusFrameDoneBufEmpty
	}

	s.payloadLeft -= len(s.buf)
	return s.buf, statusPayloadIncomplete
}
