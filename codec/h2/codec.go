// Package h2 is the concrete HTTP/2 wire codec at the bottom of the filter
// chain. Egress generators append complete frames to a buffer.Queue; the
// ingress side splits raw reads into frames incrementally and delivers
// events to the chain's callback without waiting for full payloads.
package h2

import (
	"golang.org/x/net/http2"

	"github.com/flowgate/flowgate/codec"
)

type Codec struct {
	cb codec.Callback

	split    splitter
	handlers [http2.FrameContinuation + 1]frameHandler

	henc *headerEncoder

	// set when a GOAWAY is sent or received
	goAway bool
}

func NewCodec() *Codec {
	c := &Codec{henc: newHeaderEncoder()}
	headers := newHeadersHandler(c)
	c.handlers = [http2.FrameContinuation + 1]frameHandler{
		http2.FrameData:         &dataHandler{c},
		http2.FrameHeaders:      headers,
		http2.FrameRSTStream:    &rstStreamHandler{c: c},
		http2.FrameSettings:     &settingsHandler{c},
		http2.FramePing:         &pingHandler{c: c},
		http2.FrameGoAway:       &goAwayHandler{c: c},
		http2.FrameWindowUpdate: &windowUpdateHandler{c: c},
		http2.FrameContinuation: headers,
	}
	return c
}

func (c *Codec) SetCallback(cb codec.Callback) { c.cb = cb }

func (c *Codec) IsReusable() bool { return !c.goAway }

// OnIngress consumes one chunk read from the connection. Unknown frame
// types are skipped.
func (c *Codec) OnIngress(data []byte) error {
	c.split.fill(data)
	for {
		payload, status := c.split.next()
		if status == statusHeaderIncomplete {
			return nil
		}

		header := c.split.header()
		var handler frameHandler
		if int(header.Type()) < len(c.handlers) {
			handler = c.handlers[header.Type()]
		}
		if handler != nil {
			err := handler.handle(header, payload, status == statusPayloadIncomplete)
			if err != nil {
				return err
			}
		}

		if status == statusFrameDone {
			continue
		}
		return nil
	}
}
