//go:build rp2040 || rp2350

package main

import (
	"machine"
	"sync/atomic"
)

// quadStateTable maps (previous 2-bit AB, current 2-bit AB) to a direction
// delta. Illegal double-transitions (both edges changing between samples)
// yield 0 rather than guessing, matching the reference's tolerance for a
// momentarily lagging direction bit.
var quadStateTable = [16]int32{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// GPIOQuadratureBackend decodes a spindle A/B quadrature pair via GPIO
// interrupts on both pins, x4 decoding each edge. The reference drives its
// encoder from a hardware timer in encoder-interface mode (STM32 TIM2);
// RP2040's machine package exposes no equivalent, so this reproduces the
// same x4 counting with a software state-transition table driven off
// machine.Pin edge interrupts, which is the standard TinyGo technique for
// quadrature decode without a PIO program.
type GPIOQuadratureBackend struct {
	pinA, pinB machine.Pin
	count      int32
	lastState  uint8
	countingDn uint32
}

// NewGPIOQuadratureBackend constructs an uninitialized quadrature backend.
func NewGPIOQuadratureBackend() *GPIOQuadratureBackend {
	return &GPIOQuadratureBackend{}
}

// Init configures both pins as pull-up inputs and arms edge interrupts on
// both. filterLevel is ignored: machine exposes no configurable glitch
// filter on RP2040 GPIO, and both pins always interrupt on both edges for
// x4 decoding.
func (q *GPIOQuadratureBackend) Init(pinA, pinB uint8, filterLevel uint8) error {
	q.pinA = machine.Pin(pinA)
	q.pinB = machine.Pin(pinB)
	q.pinA.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	q.pinB.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	q.lastState = q.readState()

	if err := q.pinA.SetInterrupt(machine.PinToggle, q.onEdge); err != nil {
		return err
	}
	if err := q.pinB.SetInterrupt(machine.PinToggle, q.onEdge); err != nil {
		return err
	}
	return nil
}

func (q *GPIOQuadratureBackend) readState() uint8 {
	var s uint8
	if q.pinA.Get() {
		s |= 0x1
	}
	if q.pinB.Get() {
		s |= 0x2
	}
	return s
}

// onEdge runs in interrupt context on every A or B transition. Must stay
// allocation-free and touch only this struct's atomics.
func (q *GPIOQuadratureBackend) onEdge(pin machine.Pin) {
	now := q.readState()
	idx := (q.lastState << 2) | now
	delta := quadStateTable[idx&0xF]
	q.lastState = now
	if delta == 0 {
		return
	}
	atomic.AddInt32(&q.count, delta)
	if delta < 0 {
		atomic.StoreUint32(&q.countingDn, 1)
	} else {
		atomic.StoreUint32(&q.countingDn, 0)
	}
}

// Count is an ISR-safe, lock-free read of the running x4 count.
func (q *GPIOQuadratureBackend) Count() int32 {
	return atomic.LoadInt32(&q.count)
}

// CountingDown reports the most recent edge's direction.
func (q *GPIOQuadratureBackend) CountingDown() bool {
	return atomic.LoadUint32(&q.countingDn) != 0
}

// SetFilter is a no-op placeholder; see Init's filterLevel note.
func (q *GPIOQuadratureBackend) SetFilter(level uint8) error {
	return nil
}

// Reset atomically zeroes the counter.
func (q *GPIOQuadratureBackend) Reset() {
	atomic.StoreInt32(&q.count, 0)
}
