package codec

import (
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/flowgate/flowgate/buffer"
)

// Filter is a transparent codec decorator: every Codec method delegates to
// the next layer down, every Callback method delegates to the callback above.
// Concrete filters embed it and override only the events they intercept.
//
// A filter wires itself into the chain by calling next.SetCallback with its
// outer value, so ingress events pass through its overrides.
type Filter struct {
	next Codec
	cb   Callback
}

func NewFilter(next Codec) Filter {
	return Filter{next: next}
}

// Next returns the wrapped codec.
func (f *Filter) Next() Codec { return f.next }

// Upstream returns the callback above this filter.
func (f *Filter) Upstream() Callback { return f.cb }

func (f *Filter) SetCallback(cb Callback) { f.cb = cb }

func (f *Filter) OnIngress(data []byte) error { return f.next.OnIngress(data) }
func (f *Filter) IsReusable() bool            { return f.next.IsReusable() }

func (f *Filter) GenerateHeaders(buf *buffer.Queue, streamID uint32, fields []hpack.HeaderField, endStream bool) int {
	return f.next.GenerateHeaders(buf, streamID, fields, endStream)
}

func (f *Filter) GenerateBody(buf *buffer.Queue, streamID uint32, data []byte, endStream bool) int {
	return f.next.GenerateBody(buf, streamID, data, endStream)
}

func (f *Filter) GenerateWindowUpdate(buf *buffer.Queue, streamID uint32, delta uint32) int {
	return f.next.GenerateWindowUpdate(buf, streamID, delta)
}

func (f *Filter) GenerateRSTStream(buf *buffer.Queue, streamID uint32, code http2.ErrCode) int {
	return f.next.GenerateRSTStream(buf, streamID, code)
}

func (f *Filter) GeneratePing(buf *buffer.Queue, data [8]byte, ack bool) int {
	return f.next.GeneratePing(buf, data, ack)
}

func (f *Filter) GenerateSettings(buf *buffer.Queue, ack bool) int {
	return f.next.GenerateSettings(buf, ack)
}

func (f *Filter) GenerateGoAway(buf *buffer.Queue, lastStreamID uint32, code http2.ErrCode, debugData []byte) int {
	return f.next.GenerateGoAway(buf, lastStreamID, code, debugData)
}

func (f *Filter) OnHeader(streamID uint32, name, value string) { f.cb.OnHeader(streamID, name, value) }

func (f *Filter) OnHeadersComplete(streamID uint32, endStream bool) {
	f.cb.OnHeadersComplete(streamID, endStream)
}

func (f *Filter) OnBody(streamID uint32, data []byte) { f.cb.OnBody(streamID, data) }

func (f *Filter) OnMessageComplete(streamID uint32) { f.cb.OnMessageComplete(streamID) }

func (f *Filter) OnWindowUpdate(streamID uint32, amount uint32) {
	f.cb.OnWindowUpdate(streamID, amount)
}

func (f *Filter) OnRSTStream(streamID uint32, code http2.ErrCode) {
	f.cb.OnRSTStream(streamID, code)
}

func (f *Filter) OnPing(data [8]byte, ack bool) { f.cb.OnPing(data, ack) }
func (f *Filter) OnSettings(ack bool)           { f.cb.OnSettings(ack) }

func (f *Filter) OnGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte) {
	f.cb.OnGoAway(lastStreamID, code, debugData)
}

func (f *Filter) OnError(streamID uint32, err error, ingress bool) {
	f.cb.OnError(streamID, err, ingress)
}
