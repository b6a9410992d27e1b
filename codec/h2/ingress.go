package h2

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/flowgate/flowgate/frameheader"
)

// frameHandler processes one frame type. Payloads arrive in chunks;
// incomplete tells the handler more bytes of the same frame follow.
type frameHandler interface {
	handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error
}

type dataHandler struct {
	c *Codec
}

func (h *dataHandler) handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error {
	if len(payload) > 0 {
		h.c.cb.OnBody(header.StreamID(), payload)
	}
	if incomplete {
		return nil
	}
	if header.Flags().Has(http2.FlagDataEndStream) {
		h.c.cb.OnMessageComplete(header.StreamID())
	}
	return nil
}

type headersHandler struct {
	c         *Codec
	dec       *hpack.Decoder
	streamID  uint32
	endStream bool
}

func newHeadersHandler(c *Codec) *headersHandler {
	h := &headersHandler{c: c}
	h.dec = hpack.NewDecoder(4096, h.onHeaderField)
	return h
}

func (h *headersHandler) onHeaderField(f hpack.HeaderField) {
	h.c.cb.OnHeader(h.streamID, f.Name, f.Value)
}

func (h *headersHandler) handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error {
	h.streamID = header.StreamID()
	if header.Type() == http2.FrameHeaders {
		h.endStream = header.Flags().Has(http2.FlagHeadersEndStream)
	}

	_, err := h.dec.Write(payload)
	if err != nil {
		return fmt.Errorf("hpack decoding: %w", err)
	}
	if incomplete || !header.Flags().Has(http2.FlagHeadersEndHeaders) {
		return nil
	}

	h.c.cb.OnHeadersComplete(h.streamID, h.endStream)
	if h.endStream {
		h.c.cb.OnMessageComplete(h.streamID)
	}
	return nil
}

type windowUpdateHandler struct {
	c         *Codec
	increment uint32
}

func (h *windowUpdateHandler) handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error {
	for _, b := range payload {
		h.increment = h.increment<<8 | uint32(b)
	}
	if incomplete {
		return nil
	}

	increment := h.increment & 0x7fffffff
	h.increment = 0
	h.c.cb.OnWindowUpdate(header.StreamID(), increment)
	return nil
}

type rstStreamHandler struct {
	c       *Codec
	errCode uint32
}

func (h *rstStreamHandler) handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error {
	for _, b := range payload {
		h.errCode = h.errCode<<8 | uint32(b)
	}
	if incomplete {
		return nil
	}

	code := http2.ErrCode(h.errCode)
	h.errCode = 0
	h.c.cb.OnRSTStream(header.StreamID(), code)
	return nil
}

type settingsHandler struct {
	c *Codec
}

func (h *settingsHandler) handle(header frameheader.FrameHeader, _ []byte, incomplete bool) error {
	if incomplete {
		return nil
	}
	h.c.cb.OnSettings(header.Flags().Has(http2.FlagSettingsAck))
	return nil
}

type pingHandler struct {
	c    *Codec
	data [8]byte
	n    int
}

func (h *pingHandler) handle(header frameheader.FrameHeader, payload []byte, incomplete bool) error {
	h.n += copy(h.data[h.n:], payload)
	if incomplete {
		return nil
	}

	data := h.data
	h.n = 0
	h.c.cb.OnPing(data, header.Flags().Has(http2.FlagPingAck))
	return nil
}

type goAwayHandler struct {
	c            *Codec
	lastStreamID uint32
	errCode      uint32
	debugData    []byte
	index        int
}

func (h *goAwayHandler) handle(_ frameheader.FrameHeader, payload []byte, incomplete bool) error {
	maxIndex := h.index + len(payload)
	for ; h.index < min(4, maxIndex); h.index++ {
		h.lastStreamID = h.lastStreamID<<8 | uint32(payload[0])
		payload = payload[1:]
	}
	for ; h.index < min(8, maxIndex); h.index++ {
		h.errCode = h.errCode<<8 | uint32(payload[0])
		payload = payload[1:]
	}
	h.debugData = append(h.debugData, payload...)

	if incomplete {
		return nil
	}

	h.c.goAway = true
	h.c.cb.OnGoAway(
		h.lastStreamID&0x7fffffff,
		http2.ErrCode(h.errCode),
		bytes.Clone(h.debugData),
	)
	h.lastStreamID = 0
	h.errCode = 0
	h.debugData = h.debugData[:0]
	h.index = 0
	return nil
}
