package h2_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/flowgate/flowgate/buffer"
	"github.com/flowgate/flowgate/codec/h2"
)

type event struct {
	kind      string
	streamID  uint32
	amount    uint32
	name      string
	value     string
	code      http2.ErrCode
	endStream bool
	ack       bool
	data      []byte
}

type recordingCallback struct {
	events []event
}

func (cb *recordingCallback) OnHeader(streamID uint32, name, value string) {
	cb.events = append(cb.events, event{kind: "header", streamID: streamID, name: name, value: value})
}

func (cb *recordingCallback) OnHeadersComplete(streamID uint32, endStream bool) {
	cb.events = append(cb.events, event{kind: "headers_complete", streamID: streamID, endStream: endStream})
}

func (cb *recordingCallback) OnBody(streamID uint32, data []byte) {
	cb.events = append(cb.events, event{kind: "body", streamID: streamID, data: bytes.Clone(data)})
}

func (cb *recordingCallback) OnMessageComplete(streamID uint32) {
	cb.events = append(cb.events, event{kind: "message_complete", streamID: streamID})
}

func (cb *recordingCallback) OnWindowUpdate(streamID uint32, amount uint32) {
	cb.events = append(cb.events, event{kind: "window_update", streamID: streamID, amount: amount})
}

func (cb *recordingCallback) OnRSTStream(streamID uint32, code http2.ErrCode) {
	cb.events = append(cb.events, event{kind: "rst_stream", streamID: streamID, code: code})
}

func (cb *recordingCallback) OnPing(data [8]byte, ack bool) {
	cb.events = append(cb.events, event{kind: "ping", ack: ack, data: bytes.Clone(data[:])})
}

func (cb *recordingCallback) OnSettings(ack bool) {
	cb.events = append(cb.events, event{kind: "settings", ack: ack})
}

func (cb *recordingCallback) OnGoAway(lastStreamID uint32, code http2.ErrCode, debugData []byte) {
	cb.events = append(cb.events, event{kind: "goaway", streamID: lastStreamID, code: code, data: bytes.Clone(debugData)})
}

func (cb *recordingCallback) OnError(streamID uint32, err error, _ bool) {
	cb.events = append(cb.events, event{kind: "error", streamID: streamID})
}

func (cb *recordingCallback) bodyBytes(streamID uint32) []byte {
	var out []byte
	for _, e := range cb.events {
		if e.kind == "body" && e.streamID == streamID {
			out = append(out, e.data...)
		}
	}
	return out
}

func TestEgressRoundtrip(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	c := h2.NewCodec()
	buf := buffer.NewQueue()

	payload := make([]byte, 512)
	_, err := rand.Read(payload)
	a.NoError(err)

	c.GenerateHeaders(buf, 1, []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/upload"},
	}, false)
	c.GenerateBody(buf, 1, payload, true)
	c.GenerateWindowUpdate(buf, 0, 40_000)
	c.GenerateRSTStream(buf, 3, http2.ErrCodeCancel)
	c.GeneratePing(buf, [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, true)
	c.GenerateSettings(buf, false)

	wire := bytes.NewBuffer(nil)
	_, err = buf.Flush(wire)
	a.NoError(err)
	a.Equal(0, buf.Len())

	framer := http2.NewFramer(nil, wire)
	framer.ReadMetaHeaders = hpack.NewDecoder(4096, func(hpack.HeaderField) {})

	f, err := framer.ReadFrame()
	a.NoError(err)
	headers, ok := f.(*http2.MetaHeadersFrame)
	a.True(ok)
	a.Equal(uint32(1), headers.StreamID)
	a.False(headers.StreamEnded())
	a.Equal("POST", headers.PseudoValue("method"))
	a.Equal("/upload", headers.PseudoValue("path"))

	f, err = framer.ReadFrame()
	a.NoError(err)
	data, ok := f.(*http2.DataFrame)
	a.True(ok)
	a.Equal(uint32(1), data.StreamID)
	a.True(data.StreamEnded())
	a.Equal(payload, data.Data())

	f, err = framer.ReadFrame()
	a.NoError(err)
	wu, ok := f.(*http2.WindowUpdateFrame)
	a.True(ok)
	a.Equal(uint32(0), wu.StreamID)
	a.Equal(uint32(40_000), wu.Increment)

	f, err = framer.ReadFrame()
	a.NoError(err)
	rst, ok := f.(*http2.RSTStreamFrame)
	a.True(ok)
	a.Equal(uint32(3), rst.StreamID)
	a.Equal(http2.ErrCodeCancel, rst.ErrCode)

	f, err = framer.ReadFrame()
	a.NoError(err)
	ping, ok := f.(*http2.PingFrame)
	a.True(ok)
	a.True(ping.IsAck())
	a.Equal([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, ping.Data)

	f, err = framer.ReadFrame()
	a.NoError(err)
	settings, ok := f.(*http2.SettingsFrame)
	a.True(ok)
	a.False(settings.IsAck())
}

func TestGoAwayMarksNotReusable(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	c := h2.NewCodec()
	c.SetCallback(&recordingCallback{})
	buf := buffer.NewQueue()
	a.True(c.IsReusable())

	c.GenerateGoAway(buf, 5, http2.ErrCodeFlowControl, []byte("bye"))
	a.False(c.IsReusable())

	wire := bytes.NewBuffer(nil)
	_, err := buf.Flush(wire)
	a.NoError(err)

	framer := http2.NewFramer(nil, wire)
	f, err := framer.ReadFrame()
	a.NoError(err)
	goAway, ok := f.(*http2.GoAwayFrame)
	a.True(ok)
	a.Equal(uint32(5), goAway.LastStreamID)
	a.Equal(http2.ErrCodeFlowControl, goAway.ErrCode)
	a.Equal([]byte("bye"), goAway.DebugData())
}

func TestIngressChunked(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	wire := bytes.NewBuffer(nil)
	framer := http2.NewFramer(wire, nil)

	headerBlock := bytes.NewBuffer(nil)
	enc := hpack.NewEncoder(headerBlock)
	a.NoError(enc.WriteField(hpack.HeaderField{Name: ":status", Value: "200"}))

	payload := make([]byte, 4000)
	_, err := rand.Read(payload)
	a.NoError(err)

	a.NoError(framer.WriteSettings())
	a.NoError(framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      1,
		BlockFragment: headerBlock.Bytes(),
		EndHeaders:    true,
	}))
	a.NoError(framer.WriteData(1, false, payload))
	a.NoError(framer.WriteWindowUpdate(0, 12_345))
	a.NoError(framer.WriteWindowUpdate(7, 500))
	a.NoError(framer.WritePing(false, [8]byte{9, 8, 7, 6, 5, 4, 3, 2}))
	a.NoError(framer.WriteRSTStream(7, http2.ErrCodeProtocol))
	a.NoError(framer.WriteGoAway(9, http2.ErrCodeNo, []byte("shutting down")))

	c := h2.NewCodec()
	cb := &recordingCallback{}
	c.SetCallback(cb)

	// feed in uneven chunks so headers and payloads straddle reads
	raw := wire.Bytes()
	for len(raw) > 0 {
		n := 13
		if n > len(raw) {
			n = len(raw)
		}
		a.NoError(c.OnIngress(raw[:n]))
		raw = raw[n:]
	}

	a.Equal(payload, cb.bodyBytes(1))

	var kinds []string
	for _, e := range cb.events {
		if e.kind == "body" {
			continue
		}
		kinds = append(kinds, e.kind)
	}
	a.Equal([]string{
		"settings",
		"header",
		"headers_complete",
		"window_update",
		"window_update",
		"ping",
		"rst_stream",
		"goaway",
	}, kinds)

	var nonBody []event
	for _, e := range cb.events {
		if e.kind != "body" {
			nonBody = append(nonBody, e)
		}
	}
	a.Equal("header", nonBody[1].kind)
	a.Equal(":status", nonBody[1].name)
	a.Equal("200", nonBody[1].value)

	a.Equal(uint32(0), nonBody[3].streamID)
	a.Equal(uint32(12_345), nonBody[3].amount)
	a.Equal(uint32(7), nonBody[4].streamID)
	a.Equal(uint32(500), nonBody[4].amount)

	a.False(nonBody[5].ack)
	a.Equal([]byte{9, 8, 7, 6, 5, 4, 3, 2}, nonBody[5].data)

	a.Equal(uint32(7), nonBody[6].streamID)
	a.Equal(http2.ErrCodeProtocol, nonBody[6].code)

	a.Equal(uint32(9), nonBody[7].streamID)
	a.Equal(http2.ErrCodeNo, nonBody[7].code)
	a.Equal([]byte("shutting down"), nonBody[7].data)
	a.False(c.IsReusable())
}

func TestIngressEndStream(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	wire := bytes.NewBuffer(nil)
	framer := http2.NewFramer(wire, nil)
	a.NoError(framer.WriteData(3, true, []byte("tail")))

	c := h2.NewCodec()
	cb := &recordingCallback{}
	c.SetCallback(cb)
	a.NoError(c.OnIngress(wire.Bytes()))

	a.Equal([]byte("tail"), cb.bodyBytes(3))
	last := cb.events[len(cb.events)-1]
	a.Equal("message_complete", last.kind)
	a.Equal(uint32(3), last.streamID)
}
