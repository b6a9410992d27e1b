// Package codec defines the capability surface shared by the wire codec and
// the filters decorating it: egress frame generation into a buffer.Queue and
// ingress event delivery through a Callback. Filters implement both sides and
// are composed by ownership, each holding the next layer down.
package codec

import (
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/flowgate/flowgate/buffer"
)

// Callback receives ingress events decoded from the wire.
//
// DATA payloads are delivered incrementally: OnBody may be invoked several
// times for one frame as bytes arrive from the socket.
type Callback interface {
	OnHeader(streamID uint32, name, value string)
	OnHeadersComplete(streamID uint32, endStream bool)
	OnBody(streamID uint32, data []byte)
	OnMessageComplete(streamID uint32)
	OnWindowUpdate(streamID uint32, amount uint32)
	OnRSTStream(streamID uint32, code http2.ErrCode)
	OnPing(data [8]byte, ack bool)
	OnSettings(ack bool)
	OnGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte)

	// OnError reports a protocol violation. ingress tells on which side of
	// the codec the violation was detected; the error itself carries the
	// direction it poisons.
	OnError(streamID uint32, err error, ingress bool)
}

// Codec parses ingress bytes and serializes egress frames. Generate methods
// append to buf and report the number of bytes queued.
type Codec interface {
	SetCallback(cb Callback)

	// OnIngress consumes a chunk of bytes read from the connection.
	OnIngress(data []byte) error

	// IsReusable reports whether the connection may serve further logical
	// requests.
	IsReusable() bool

	GenerateHeaders(buf *buffer.Queue, streamID uint32, fields []hpack.HeaderField, endStream bool) int
	GenerateBody(buf *buffer.Queue, streamID uint32, data []byte, endStream bool) int
	GenerateWindowUpdate(buf *buffer.Queue, streamID uint32, delta uint32) int
	GenerateRSTStream(buf *buffer.Queue, streamID uint32, code http2.ErrCode) int
	GeneratePing(buf *buffer.Queue, data [8]byte, ack bool) int
	GenerateSettings(buf *buffer.Queue, ack bool) int
	GenerateGoAway(buf *buffer.Queue, lastStreamID uint32, code http2.ErrCode, debugData []byte) int
}
