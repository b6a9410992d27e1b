package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
	"golang.org/x/sync/errgroup"

	"github.com/flowgate/flowgate/conn"
	"github.com/flowgate/flowgate/consts"
)

type SendCommand struct {
	Addr    string        `required:"" help:"Address of the server (host:port, plaintext h2c)."`
	Path    string        `default:"/" help:"Request path."`
	Bytes   uint64        `default:"1048576" help:"Payload size to send."`
	Window  uint32        `help:"Connection-level receive window to advertise."`
	Timeout time.Duration `default:"11s" help:"Dial timeout."`
	Verbose bool          `help:"Verbose output."`
}

func (s *SendCommand) Run(ctx context.Context) error {
	log := zap.NewNop()
	if s.Verbose {
		log = zap.Must(zap.NewDevelopment())
	}

	dialer := net.Dialer{Timeout: s.Timeout}
	nc, err := dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("dialing: %w", err)
	}

	conf := conn.DefaultConfig()
	if s.Window != 0 {
		conf.RecvWindow = s.Window
	}

	h := newSendHandler(log)
	c := conn.New(nc, h, conf, log)
	defer c.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(ctx) })

	// Acknowledge consumed response bytes outside the read goroutine.
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case n := <-h.processed:
				c.BytesProcessed(n)
			}
		}
	})

	const streamID = 1
	begin := time.Now()
	g.Go(func() error {
		defer cancel()

		c.SendHeaders(streamID, s.requestFields(), s.Bytes == 0)

		chunk := make([]byte, consts.DefaultMaxFrameSize)
		left := s.Bytes
		for left > 0 {
			b := chunk
			if left < uint64(len(b)) {
				b = b[:left]
			}

			n := c.Send(streamID, b, left == uint64(len(b)))
			left -= uint64(n)
			if n == len(b) {
				continue
			}

			log.Debug("send window exhausted, waiting for WINDOW_UPDATE",
				zap.Uint64("left", left))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-h.windowOpen:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	elapsed := time.Since(begin)
	rate := float64(s.Bytes) / elapsed.Seconds()
	fmt.Printf("sent %s, received %s in %s (%s/s)\n",
		humanize.IBytes(s.Bytes),
		humanize.IBytes(uint64(h.received.Load())),
		elapsed.Round(time.Millisecond),
		humanize.IBytes(uint64(rate)),
	)
	return nil
}

func (s *SendCommand) requestFields() []hpack.HeaderField {
	return []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":scheme", Value: "http"},
		{Name: ":path", Value: s.Path},
		{Name: ":authority", Value: s.Addr},
		{Name: "content-type", Value: "application/octet-stream"},
	}
}

type sendHandler struct {
	log *zap.Logger

	windowOpen chan struct{}
	processed  chan uint32
	done       chan struct{}

	received atomic.Int64
}

func newSendHandler(log *zap.Logger) *sendHandler {
	return &sendHandler{
		log:        log.Named("handler"),
		windowOpen: make(chan struct{}, 1),
		processed:  make(chan uint32, 1024),
		done:       make(chan struct{}),
	}
}

func (h *sendHandler) OnHeader(_ uint32, name, value string) {
	h.log.Debug("header", zap.String("name", name), zap.String("value", value))
}

func (h *sendHandler) OnHeadersComplete(streamID uint32, endStream bool) {
	h.log.Debug("headers complete",
		zap.Uint32("stream-id", streamID),
		zap.Bool("end-stream", endStream))
}

func (h *sendHandler) OnBody(_ uint32, data []byte) {
	h.received.Add(int64(len(data)))
	select {
	case h.processed <- uint32(len(data)):
	default:
	}
}

func (h *sendHandler) OnMessageComplete(streamID uint32) {
	h.log.Debug("message complete", zap.Uint32("stream-id", streamID))
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *sendHandler) OnWindowUpdate(streamID uint32, amount uint32) {
	h.log.Debug("stream window update",
		zap.Uint32("stream-id", streamID),
		zap.Uint32("amount", amount))
}

func (h *sendHandler) OnRSTStream(streamID uint32, code http2.ErrCode) {
	h.log.Warn("stream reset",
		zap.Uint32("stream-id", streamID),
		zap.Stringer("code", code))
}

func (h *sendHandler) OnGoAway(lastStreamID uint32, code http2.ErrCode, _ []byte) {
	h.log.Warn("goaway",
		zap.Uint32("last-stream-id", lastStreamID),
		zap.Stringer("code", code))
}

func (h *sendHandler) OnSendWindowOpen() {
	select {
	case h.windowOpen <- struct{}{}:
	default:
	}
}

func (h *sendHandler) OnError(streamID uint32, err error, ingress bool) {
	h.log.Error("protocol error",
		zap.Uint32("stream-id", streamID),
		zap.Bool("ingress", ingress),
		zap.Error(err))
}
