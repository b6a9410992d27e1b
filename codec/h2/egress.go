package h2

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/flowgate/flowgate/buffer"
	"github.com/flowgate/flowgate/frameheader"
)

func (c *Codec) GenerateHeaders(buf *buffer.Queue, streamID uint32, fields []hpack.HeaderField, endStream bool) int {
	block := c.henc.encode(fields)

	flags := http2.FlagHeadersEndHeaders
	if endStream {
		flags |= http2.FlagHeadersEndStream
	}

	b := buf.Alloc(frameheader.Len + len(block))
	frameheader.FrameHeader(b).Fill(len(block), http2.FrameHeaders, flags, streamID)
	copy(b[frameheader.Len:], block)
	buf.Append(b)
	return len(b)
}

func (c *Codec) GenerateBody(buf *buffer.Queue, streamID uint32, data []byte, endStream bool) int {
	var flags http2.Flags
	if endStream {
		flags |= http2.FlagDataEndStream
	}

	b := buf.Alloc(frameheader.Len + len(data))
	frameheader.FrameHeader(b).Fill(len(data), http2.FrameData, flags, streamID)
	copy(b[frameheader.Len:], data)
	buf.Append(b)
	return len(b)
}

func (c *Codec) GenerateWindowUpdate(buf *buffer.Queue, streamID uint32, delta uint32) int {
	b := buf.Alloc(frameheader.Len + 4)
	frameheader.FrameHeader(b).Fill(4, http2.FrameWindowUpdate, 0, streamID)
	binary.BigEndian.PutUint32(b[frameheader.Len:], delta&0x7fffffff)
	buf.Append(b)
	return len(b)
}

func (c *Codec) GenerateRSTStream(buf *buffer.Queue, streamID uint32, code http2.ErrCode) int {
	b := buf.Alloc(frameheader.Len + 4)
	frameheader.FrameHeader(b).Fill(4, http2.FrameRSTStream, 0, streamID)
	binary.BigEndian.PutUint32(b[frameheader.Len:], uint32(code))
	buf.Append(b)
	return len(b)
}

func (c *Codec) GeneratePing(buf *buffer.Queue, data [8]byte, ack bool) int {
	var flags http2.Flags
	if ack {
		flags |= http2.FlagPingAck
	}

	b := buf.Alloc(frameheader.Len + 8)
	frameheader.FrameHeader(b).Fill(8, http2.FramePing, flags, 0)
	copy(b[frameheader.Len:], data[:])
	buf.Append(b)
	return len(b)
}

func (c *Codec) GenerateSettings(buf *buffer.Queue, ack bool) int {
	var flags http2.Flags
	if ack {
		flags |= http2.FlagSettingsAck
	}

	b := buf.Alloc(frameheader.Len)
	frameheader.FrameHeader(b).Fill(0, http2.FrameSettings, flags, 0)
	buf.Append(b)
	return len(b)
}

func (c *Codec) GenerateGoAway(buf *buffer.Queue, lastStreamID uint32, code http2.ErrCode, debugData []byte) int {
	c.goAway = true

	b := buf.Alloc(frameheader.Len + 8 + len(debugData))
	frameheader.FrameHeader(b).Fill(8+len(debugData), http2.FrameGoAway, 0, 0)
	binary.BigEndian.PutUint32(b[frameheader.Len:], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(b[frameheader.Len+4:], uint32(code))
	copy(b[frameheader.Len+8:], debugData)
	buf.Append(b)
	return len(b)
}

// headerEncoder owns the connection's hpack encoder state.
type headerEncoder struct {
	buf bytes.Buffer
	enc *hpack.Encoder
}

func newHeaderEncoder() *headerEncoder {
	e := &headerEncoder{}
	e.enc = hpack.NewEncoder(&e.buf)
	return e
}

func (e *headerEncoder) encode(fields []hpack.HeaderField) []byte {
	e.buf.Reset()
	for _, f := range fields {
		//nolint:errcheck // writes to an in-memory buffer
		e.enc.WriteField(f)
	}
	return e.buf.Bytes()
}
