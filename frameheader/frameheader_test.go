package frameheader_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/http2"

	"github.com/flowgate/flowgate/frameheader"
)

func TestFillMatchesWire(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	wire := bytes.NewBuffer(nil)
	framer := http2.NewFramer(wire, nil)
	a.NoError(framer.WriteData(123, true, make([]byte, 512)))

	h := frameheader.FrameHeader(make([]byte, frameheader.Len))
	h.Fill(512, http2.FrameData, http2.FlagDataEndStream, 123)
	a.Equal(wire.Bytes()[:frameheader.Len], []byte(h))

	a.Equal(512, h.Length())
	a.Equal(http2.FrameData, h.Type())
	a.Equal(http2.FlagDataEndStream, h.Flags())
	a.Equal(uint32(123), h.StreamID())
}

func TestStreamIDMasksReservedBit(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	h := frameheader.FrameHeader(make([]byte, frameheader.Len))
	h.Fill(0, http2.FrameWindowUpdate, 0, 42)
	h[5] |= 0x80
	a.Equal(uint32(42), h.StreamID())
}
