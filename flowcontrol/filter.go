package flowcontrol

import (
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/flowgate/flowgate/buffer"
	"github.com/flowgate/flowgate/codec"
	"github.com/flowgate/flowgate/consts"
)

// Notifier is told when a previously exhausted connection send window
// becomes usable again. This is the only asynchronous signal the filter
// produces; it never blocks a caller waiting for credit.
type Notifier interface {
	OnConnSendWindowOpen()
}

func flowControlError() *codec.Error {
	return &codec.Error{
		Code: http2.ErrCodeFlowControl,
		Dir:  codec.DirIngressAndEgress,
	}
}

// ConnFilter enforces connection-level (stream 0) flow control around a
// wrapped codec. Ingress DATA is charged against the receive window before
// it reaches the application; egress DATA is charged against the send
// window before it reaches the codec. Connection-level WINDOW_UPDATE frames
// are consumed here in both directions and never cross the filter.
//
// The filter is single-threaded: the owning connection serializes all calls.
type ConnFilter struct {
	codec.Filter

	notify Notifier
	log    *zap.Logger

	recvWindow Window
	sendWindow Window

	// toAck accumulates bytes the application consumed but the peer has not
	// been re-credited for yet.
	toAck int64

	errored      bool
	sendsBlocked bool
}

// NewConnFilter wraps next and wires itself in as its callback. If
// recvCapacity exceeds the protocol default, the window grows immediately
// and a WINDOW_UPDATE for the delta is queued on writeBuf so the peer
// learns about the larger buffer before sending any data. Values below the
// default are ignored: the default is a protocol floor.
func NewConnFilter(
	next codec.Codec,
	notify Notifier,
	writeBuf *buffer.Queue,
	recvCapacity uint32,
	log *zap.Logger,
) *ConnFilter {
	f := &ConnFilter{
		Filter:     codec.NewFilter(next),
		notify:     notify,
		log:        log,
		recvWindow: NewWindow(consts.DefaultInitialWindowSize),
		sendWindow: NewWindow(consts.DefaultInitialWindowSize),
	}
	next.SetCallback(f)

	if recvCapacity < consts.DefaultInitialWindowSize {
		log.Debug("ignoring low connection-level recv window size",
			zap.Uint32("capacity", recvCapacity))
	} else if recvCapacity > consts.DefaultInitialWindowSize {
		delta := recvCapacity - consts.DefaultInitialWindowSize
		if !f.recvWindow.SetCapacity(recvCapacity) {
			panic("recv window capacity out of range")
		}
		log.Debug("growing default connection-level recv window",
			zap.Uint32("delta", delta))
		next.GenerateWindowUpdate(writeBuf, 0, delta)
	}
	return f
}

// SetReceiveWindowSize grows the advertised connection receive window.
// Requests below the protocol default or below the current capacity are
// ignored. Unlike IngressBytesProcessed this path flushes the delta at
// once: a resize is a deliberate, infrequent operator action the peer
// should see promptly.
func (f *ConnFilter) SetReceiveWindowSize(writeBuf *buffer.Queue, capacity uint32) {
	if capacity < consts.DefaultInitialWindowSize {
		f.log.Debug("ignoring low connection-level recv window size",
			zap.Uint32("capacity", capacity))
		return
	}
	if capacity < f.recvWindow.Capacity() {
		// Shrinking can strand data already in flight.
		f.log.Debug("refusing to shrink the recv window")
		return
	}
	delta := capacity - f.recvWindow.Capacity()
	if !f.recvWindow.SetCapacity(capacity) {
		f.log.Warn("failed setting connection-level recv window capacity",
			zap.Uint32("capacity", capacity))
		return
	}
	f.toAck += int64(delta)
	if f.toAck > 0 {
		f.Next().GenerateWindowUpdate(writeBuf, 0, delta)
		f.toAck = 0
	}
}

// IngressBytesProcessed records that the application consumed delta more
// bytes of delivered body. Once the unacknowledged total crosses half the
// receive window's capacity the credit is freed and a single WINDOW_UPDATE
// for the whole batch is queued; it reports whether that flush happened.
// Acking every byte would flood the peer with tiny control frames, while
// the half-window threshold bounds its worst-case stall.
func (f *ConnFilter) IngressBytesProcessed(writeBuf *buffer.Queue, delta uint32) bool {
	f.toAck += int64(delta)
	if f.toAck > 0 && f.toAck > int64(f.recvWindow.Capacity()/2) {
		if !f.recvWindow.Free(uint32(f.toAck)) {
			panic("recv window overflow while acking processed bytes")
		}
		f.Next().GenerateWindowUpdate(writeBuf, 0, uint32(f.toAck))
		f.toAck = 0
		return true
	}
	return false
}

// AvailableSend is how much the application may generate right now without
// the filter treating it as a contract violation.
func (f *ConnFilter) AvailableSend() uint32 {
	return f.sendWindow.NonNegativeSize()
}

func (f *ConnFilter) IsReusable() bool {
	if f.errored {
		return false
	}
	return f.Next().IsReusable()
}

// OnBody charges ingress body against the receive window. This is the
// enforcement point: a peer that sends beyond the advertised window is
// detected here, the data is dropped and a flow control error raised.
func (f *ConnFilter) OnBody(streamID uint32, data []byte) {
	if !f.recvWindow.Reserve(uint32(len(data))) {
		f.log.Warn("peer exceeded connection-level recv window",
			zap.Uint32("stream-id", streamID),
			zap.Int("len", len(data)))
		f.errored = true
		f.Upstream().OnError(0, flowControlError(), true)
		return
	}
	f.Upstream().OnBody(streamID, data)
}

// OnWindowUpdate consumes connection-level grants and forwards stream-level
// ones untouched. A grant that overflows the send window means the peer's
// credit accounting is unknowable and aborts the whole connection.
func (f *ConnFilter) OnWindowUpdate(streamID uint32, amount uint32) {
	if streamID != 0 {
		f.Upstream().OnWindowUpdate(streamID, amount)
		return
	}

	if !f.sendWindow.Free(amount) {
		f.log.Warn("peer sent connection-level WINDOW_UPDATE that could not be applied, aborting session",
			zap.Uint32("amount", amount))
		f.errored = true
		f.Upstream().OnError(streamID, flowControlError(), true)
	}
	if f.sendsBlocked && f.sendWindow.NonNegativeSize() > 0 {
		f.sendsBlocked = false
		f.notify.OnConnSendWindowOpen()
	}
	// Consumed entirely here, never forwarded.
}

// GenerateBody charges egress body against the send window before handing
// it to the codec. Callers are contractually bound to AvailableSend, so a
// reserve failure is a local bug and panics rather than corrupting the
// accounting.
func (f *ConnFilter) GenerateBody(buf *buffer.Queue, streamID uint32, data []byte, endStream bool) int {
	if !f.sendWindow.Reserve(uint32(len(data))) {
		panic("connection-level send window underflowed: more data generated than WINDOW_UPDATEs allow")
	}
	if f.sendWindow.NonNegativeSize() == 0 {
		// Remember to notify once the peer opens the window again.
		f.sendsBlocked = true
	}
	return f.Next().GenerateBody(buf, streamID, data, endStream)
}

// GenerateWindowUpdate passes stream-level updates through. Connection-level
// generation is owned by this filter; a caller bypassing it would
// desynchronize the ack accounting.
func (f *ConnFilter) GenerateWindowUpdate(buf *buffer.Queue, streamID uint32, delta uint32) int {
	if streamID == 0 {
		panic("connection-level window updates are generated by the flow control filter only")
	}
	return f.Next().GenerateWindowUpdate(buf, streamID, delta)
}
