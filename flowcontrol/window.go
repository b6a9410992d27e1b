// Package flowcontrol implements connection-level HTTP/2 flow control as a
// codec filter: a credit window per direction, enforcement of the peer's
// advertised limits on ingress, and batched WINDOW_UPDATE generation for
// bytes the application has consumed.
package flowcontrol

import "github.com/flowgate/flowgate/consts"

// Window is a flow control credit balance bounded by a capacity that only
// ever grows. available is kept signed so capacity arithmetic can pass
// through transient negatives without wrapping.
type Window struct {
	capacity  uint32
	available int64
}

func NewWindow(capacity uint32) Window {
	return Window{capacity: capacity, available: int64(capacity)}
}

// Reserve consumes n units of credit. It fails and leaves the window
// untouched if less than n credit is available.
func (w *Window) Reserve(n uint32) bool {
	if int64(n) > w.available {
		return false
	}
	w.available -= int64(n)
	return true
}

// Free returns n units of previously reserved credit. It fails if the
// balance would exceed MaxWindowSize, which on the wire means the peer
// granted more credit than the protocol allows.
func (w *Window) Free(n uint32) bool {
	if w.available+int64(n) > consts.MaxWindowSize {
		return false
	}
	w.available += int64(n)
	return true
}

// SetCapacity grows the window ceiling and credits the delta. Shrinking is
// refused: data already in flight was reserved against the old capacity.
func (w *Window) SetCapacity(capacity uint32) bool {
	if capacity < w.capacity || capacity > consts.MaxWindowSize {
		return false
	}
	w.available += int64(capacity - w.capacity)
	w.capacity = capacity
	return true
}

func (w *Window) Capacity() uint32 { return w.capacity }

// NonNegativeSize is the credit usable right now, clamped at zero for
// consumers that cannot reason about negative balances.
func (w *Window) NonNegativeSize() uint32 {
	if w.available < 0 {
		return 0
	}
	return uint32(w.available)
}
