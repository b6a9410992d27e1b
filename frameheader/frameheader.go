package frameheader

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"golang.org/x/net/http2"
)

// Len is the wire size of an HTTP/2 frame header.
const Len = 9

// FrameHeader is a view over the 9 leading bytes of an HTTP/2 frame.
type FrameHeader []byte

func (f FrameHeader) Fill(
	length int,
	t http2.FrameType,
	flags http2.Flags,
	streamID uint32,
) {
	_ = f[8]
	f[0] = byte(length >> 16)
	f[1] = byte(length >> 8)
	f[2] = byte(length)
	f[3] = byte(t)
	f[4] = byte(flags)
	binary.BigEndian.PutUint32(f[5:], streamID)
}

func (f FrameHeader) Length() int {
	_ = f[2]
	return int(f[0])<<16 | int(f[1])<<8 | int(f[2])
}

func (f FrameHeader) Type() http2.FrameType { return http2.FrameType(f[3]) }
func (f FrameHeader) Flags() http2.Flags    { return http2.Flags(f[4]) }

// StreamID masks the reserved bit.
func (f FrameHeader) StreamID() uint32 { return binary.BigEndian.Uint32(f[5:]) & 0x7fffffff }

func (f FrameHeader) String() string {
	return f.Type().String() +
		"/ length=" + strconv.Itoa(f.Length()) +
		"/ streamID=" + strconv.FormatUint(uint64(f.StreamID()), 10) +
		"/ flags=" + fmt.Sprintf("%o", f.Flags())
}
