// Package conn drives a flow-controlled HTTP/2 connection: it owns the
// socket, composes the wire codec with the connection-level flow control
// filter and pumps bytes between them and the application handler.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
	"golang.org/x/sync/errgroup"

	"github.com/flowgate/flowgate/buffer"
	"github.com/flowgate/flowgate/codec"
	"github.com/flowgate/flowgate/codec/h2"
	"github.com/flowgate/flowgate/consts"
	"github.com/flowgate/flowgate/flowcontrol"
)

var clientPreface = []byte(http2.ClientPreface)

// Handler receives application-level connection events. Calls arrive from
// the connection's read goroutine; handlers must not call back into the
// Conn from inside an event.
type Handler interface {
	OnHeader(streamID uint32, name, value string)
	OnHeadersComplete(streamID uint32, endStream bool)
	OnBody(streamID uint32, data []byte)
	OnMessageComplete(streamID uint32)

	// OnWindowUpdate delivers stream-level grants only; connection-level
	// grants are consumed by the flow control filter.
	OnWindowUpdate(streamID uint32, amount uint32)
	OnRSTStream(streamID uint32, code http2.ErrCode)
	OnGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte)

	// OnSendWindowOpen fires when a Send that returned short may be retried.
	OnSendWindowOpen()
	OnError(streamID uint32, err error, ingress bool)
}

type Config struct {
	// RecvWindow is the advertised connection-level receive window. Values
	// above the protocol default are announced to the peer before any data
	// flows.
	RecvWindow     uint32
	ReadBufferSize int
	BatchTimeout   time.Duration

	// ClientPreface prepends the connection preface and an empty SETTINGS
	// frame to the first flush.
	ClientPreface bool
}

func DefaultConfig() Config {
	return Config{
		RecvWindow:     consts.DefaultInitialWindowSize,
		ReadBufferSize: consts.ReadBufferSize,
		BatchTimeout:   consts.SendBatchTimeout,
		ClientPreface:  true,
	}
}

type Conn struct {
	nc      net.Conn
	handler Handler
	conf    Config
	log     *zap.Logger

	mu       sync.Mutex
	writeBuf *buffer.Queue
	chain    codec.Codec
	fc       *flowcontrol.ConnFilter

	flushCh chan struct{}
}

func New(nc net.Conn, handler Handler, conf Config, log *zap.Logger) *Conn {
	c := &Conn{
		nc:       nc,
		handler:  handler,
		conf:     conf,
		log:      log.Named("conn"),
		writeBuf: buffer.NewQueue(),
		flushCh:  make(chan struct{}, 1),
	}

	if conf.ClientPreface {
		b := c.writeBuf.Alloc(len(clientPreface))
		copy(b, clientPreface)
		c.writeBuf.Append(b)
	}

	wire := h2.NewCodec()
	if conf.ClientPreface {
		// SETTINGS must be the first frame after the preface, ahead of any
		// WINDOW_UPDATE the flow control filter emits on construction.
		wire.GenerateSettings(c.writeBuf, false)
	}

	c.fc = flowcontrol.NewConnFilter(wire, c, c.writeBuf, conf.RecvWindow, c.log)
	c.fc.SetCallback(c)
	c.chain = c.fc
	return c
}

// Run pumps the connection until ctx is canceled, the peer disconnects or a
// protocol error is hit.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.writeLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		// unblock the pending Read
		return c.nc.SetReadDeadline(time.Now())
	})
	c.signalFlush()
	return g.Wait()
}

func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, c.conf.ReadBufferSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.mu.Lock()
			ingressErr := c.chain.OnIngress(buf[:n])
			pending := c.writeBuf.Len() > 0
			c.mu.Unlock()

			if pending {
				c.signalFlush()
			}
			if ingressErr != nil {
				return fmt.Errorf("ingress: %w", ingressErr)
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.flushCh:
		}

		if c.conf.BatchTimeout > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.conf.BatchTimeout):
			}
		}

		c.mu.Lock()
		bufs := c.writeBuf.Take()
		c.mu.Unlock()
		if len(bufs) == 0 {
			continue
		}

		taken := bufs
		_, err := bufs.WriteTo(c.nc)
		c.writeBuf.Recycle(taken)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
}

func (c *Conn) signalFlush() {
	select {
	case c.flushCh <- struct{}{}:
	default:
	}
}

// SendHeaders queues a HEADERS frame for streamID.
func (c *Conn) SendHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool) {
	c.mu.Lock()
	c.chain.GenerateHeaders(c.writeBuf, streamID, fields, endStream)
	c.mu.Unlock()
	c.signalFlush()
}

// Send queues as much of data as the connection send window allows and
// returns the number of bytes accepted. endStream is only applied when the
// whole payload fits. When Send returns short the handler's
// OnSendWindowOpen fires once the peer grants more credit.
func (c *Conn) Send(streamID uint32, data []byte, endStream bool) int {
	c.mu.Lock()
	n := len(data)
	if avail := int(c.fc.AvailableSend()); n > avail {
		n = avail
	}
	if n > 0 || (endStream && len(data) == 0) {
		c.chain.GenerateBody(c.writeBuf, streamID, data[:n], endStream && n == len(data))
	}
	c.mu.Unlock()
	c.signalFlush()
	return n
}

// BytesProcessed tells the flow control filter the application consumed
// delta more bytes of delivered body.
func (c *Conn) BytesProcessed(delta uint32) {
	c.mu.Lock()
	flushed := c.fc.IngressBytesProcessed(c.writeBuf, delta)
	c.mu.Unlock()
	if flushed {
		c.signalFlush()
	}
}

// SetReceiveWindowSize grows the advertised connection receive window.
func (c *Conn) SetReceiveWindowSize(capacity uint32) {
	c.mu.Lock()
	c.fc.SetReceiveWindowSize(c.writeBuf, capacity)
	pending := c.writeBuf.Len() > 0
	c.mu.Unlock()
	if pending {
		c.signalFlush()
	}
}

// AvailableSend is the connection-level send credit usable right now.
func (c *Conn) AvailableSend() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fc.AvailableSend()
}

func (c *Conn) IsReusable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.IsReusable()
}

// Close flushes queued frames best effort and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	bufs := c.writeBuf.Take()
	c.mu.Unlock()

	var flushErr error
	if len(bufs) > 0 {
		_, flushErr = bufs.WriteTo(c.nc)
	}
	return multierr.Append(flushErr, c.nc.Close())
}

// codec.Callback — events below arrive from the read goroutine with c.mu
// held.

func (c *Conn) OnHeader(streamID uint32, name, value string) {
	c.handler.OnHeader(streamID, name, value)
}

func (c *Conn) OnHeadersComplete(streamID uint32, endStream bool) {
	c.handler.OnHeadersComplete(streamID, endStream)
}

func (c *Conn) OnBody(streamID uint32, data []byte) {
	c.handler.OnBody(streamID, data)
}

func (c *Conn) OnMessageComplete(streamID uint32) {
	c.handler.OnMessageComplete(streamID)
}

func (c *Conn) OnWindowUpdate(streamID uint32, amount uint32) {
	c.handler.OnWindowUpdate(streamID, amount)
}

func (c *Conn) OnRSTStream(streamID uint32, code http2.ErrCode) {
	c.handler.OnRSTStream(streamID, code)
}

func (c *Conn) OnPing(data [8]byte, ack bool) {
	if ack {
		c.log.Debug("ping ack received")
		return
	}
	c.chain.GeneratePing(c.writeBuf, data, true)
}

func (c *Conn) OnSettings(ack bool) {
	if ack {
		return
	}
	c.chain.GenerateSettings(c.writeBuf, true)
}

func (c *Conn) OnGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte) {
	c.log.Debug("goaway received",
		zap.Uint32("last-stream-id", lastStreamID),
		zap.Stringer("code", code))
	c.handler.OnGoAway(lastStreamID, code, debugData)
}

func (c *Conn) OnError(streamID uint32, err error, ingress bool) {
	c.log.Warn("protocol error", zap.Uint32("stream-id", streamID), zap.Error(err))
	var cerr *codec.Error
	if ingress && errors.As(err, &cerr) {
		c.chain.GenerateGoAway(c.writeBuf, 0, cerr.Code, nil)
	}
	c.handler.OnError(streamID, err, ingress)
}

// flowcontrol.Notifier

func (c *Conn) OnConnSendWindowOpen() {
	c.handler.OnSendWindowOpen()
}
