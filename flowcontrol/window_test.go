package flowcontrol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowgate/flowgate/consts"
	"github.com/flowgate/flowgate/flowcontrol"
)

func TestWindowReserveFree(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := flowcontrol.NewWindow(64)
	a.Equal(uint32(64), w.Capacity())
	a.Equal(uint32(64), w.NonNegativeSize())

	a.False(w.Reserve(65))
	a.Equal(uint32(64), w.NonNegativeSize())

	a.True(w.Reserve(40))
	a.Equal(uint32(24), w.NonNegativeSize())

	a.True(w.Reserve(24))
	a.Equal(uint32(0), w.NonNegativeSize())
	a.False(w.Reserve(1))

	a.True(w.Free(40))
	a.Equal(uint32(40), w.NonNegativeSize())
	a.True(w.Free(24))
	a.Equal(uint32(64), w.NonNegativeSize())
}

func TestWindowFreeOverflow(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := flowcontrol.NewWindow(consts.MaxWindowSize)
	a.False(w.Free(1))
	a.Equal(uint32(consts.MaxWindowSize), w.NonNegativeSize())

	a.True(w.Reserve(1))
	a.True(w.Free(1))
	a.False(w.Free(1))
}

func TestWindowSetCapacity(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	w := flowcontrol.NewWindow(64)
	a.True(w.Reserve(30))

	a.True(w.SetCapacity(128))
	a.Equal(uint32(128), w.Capacity())
	a.Equal(uint32(98), w.NonNegativeSize())

	// shrinking is a no-op
	a.False(w.SetCapacity(64))
	a.Equal(uint32(128), w.Capacity())
	a.Equal(uint32(98), w.NonNegativeSize())

	a.False(w.SetCapacity(0))
	a.Equal(uint32(128), w.Capacity())
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	a := assert.New(t)

	// matched reserve/free sequences keep the balance within capacity
	w := flowcontrol.NewWindow(100)
	for i := 0; i < 50; i++ {
		a.True(w.Reserve(7))
		a.True(w.Free(7))
		a.LessOrEqual(w.NonNegativeSize(), w.Capacity())
	}
	a.Equal(uint32(100), w.NonNegativeSize())
}
