package codec

import (
	"fmt"

	"golang.org/x/net/http2"
)

// Direction tells which half of the connection an error poisons.
type Direction uint8

const (
	DirIngress Direction = iota
	DirEgress
	DirIngressAndEgress
)

func (d Direction) String() string {
	switch d {
	case DirIngress:
		return "ingress"
	case DirEgress:
		return "egress"
	case DirIngressAndEgress:
		return "ingress and egress"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// Error is a connection-level protocol violation surfaced through
// Callback.OnError.
type Error struct {
	Code http2.ErrCode
	Dir  Direction
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s (%s)", e.Code, e.Dir)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Dir, e.Msg)
}
