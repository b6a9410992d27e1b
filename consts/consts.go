package consts

import (
	"math"
	"time"
)

const (
	// DefaultInitialWindowSize is the flow control window both peers start
	// with (RFC 9113 §6.9.2). The connection-level window ignores
	// SETTINGS_INITIAL_WINDOW_SIZE.
	DefaultInitialWindowSize = 65_535

	// MaxWindowSize is the largest value a flow control window may reach.
	// A peer granting credit beyond it commits a FLOW_CONTROL_ERROR.
	MaxWindowSize = math.MaxInt32

	DefaultMaxFrameSize = 16384

	ReadBufferSize   = 2048
	SendBatchTimeout = time.Millisecond
)
