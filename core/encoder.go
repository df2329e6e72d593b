package core

// EncoderCapture turns spindle A/B quadrature into a monotonic signed count.
// Modeled on the EncoderTimer hardware-timer encoder mode (STM32 TIM2 in
// encoder-interface mode): the counter itself is free-running hardware state,
// this struct only layers RPM estimation and direction bookkeeping on top.

import "sync/atomic"

const (
	// MinRPMWindowMs is the minimum elapsed time before a new RPM figure is
	// computed; shorter intervals return the previous reading to avoid noise.
	MinRPMWindowMs = 10
)

// EncoderSample is an immutable point-in-time snapshot of the encoder.
type EncoderSample struct {
	Count       int32
	TimestampMs uint32
	RPM         int16
	Direction   bool // true = reverse (counting down)
	Valid       bool
}

// QuadratureBackend is the hardware abstraction for a x4 quadrature decoder
// (e.g. an RP2040 PIO program or an STM32 timer encoder-interface mode).
type QuadratureBackend interface {
	// Init configures pinA/pinB with pull-ups and starts free-running x4
	// quadrature counting.
	Init(pinA, pinB uint8, filterLevel uint8) error
	// Count reads the raw hardware counter. Must be ISR-safe.
	Count() int32
	// CountingDown reports the hardware's direction flag. May lag the true
	// direction by one quadrature event; the count itself is authoritative.
	CountingDown() bool
	// SetFilter reconfigures the input filter without losing count.
	SetFilter(level uint8) error
	// Reset atomically zeroes the hardware counter.
	Reset()
}

// EncoderCapture is the single spindle quadrature counter shared by
// MotionCoordinator and sampled by the Synchronizer ISR.
type EncoderCapture struct {
	backend QuadratureBackend
	ppr     uint32
	invert  bool

	lastCount   int32
	lastTimeMs  uint32
	lastRPM     int32 // stored as int32 so atomic ops are available
	initialized uint32
}

// NewEncoderCapture constructs an EncoderCapture bound to a quadrature
// backend. Call Begin before sampling.
func NewEncoderCapture(backend QuadratureBackend, ppr uint32, invertDirection bool) *EncoderCapture {
	return &EncoderCapture{backend: backend, ppr: ppr, invert: invertDirection}
}

// Begin configures the hardware decoder. Idempotent.
func (e *EncoderCapture) Begin(pinA, pinB uint8, filterLevel uint8) error {
	if atomic.LoadUint32(&e.initialized) != 0 {
		return nil
	}
	if err := e.backend.Init(pinA, pinB, filterLevel); err != nil {
		return Fault{Kind: FaultEncoderInit, Message: err.Error()}
	}
	atomic.StoreUint32(&e.initialized, 1)
	return nil
}

// Count is a direct, ISR-safe read of the hardware counter.
func (e *EncoderCapture) Count() int32 {
	return e.backend.Count()
}

// Reset atomically zeroes the counter. The next Sample's RPM reads 0 until
// a new RPM window elapses.
func (e *EncoderCapture) Reset() {
	e.backend.Reset()
	atomic.StoreInt32(&e.lastCount, 0)
	atomic.StoreUint32(&e.lastTimeMs, 0)
	atomic.StoreInt32(&e.lastRPM, 0)
}

// SetFilter reconfigures the input filter; level is clamped to [0, 15].
func (e *EncoderCapture) SetFilter(level uint8) error {
	if level > 15 {
		level = 15
	}
	return e.backend.SetFilter(level)
}

// Sample aggregates count, timestamp, RPM, and direction into a snapshot.
// nowMs is the caller's current millisecond clock (injected so the Sync ISR
// and tests share one time source).
func (e *EncoderCapture) Sample(nowMs uint32) EncoderSample {
	count := e.backend.Count()
	rpm := e.updateRPM(count, nowMs)
	dir := e.backend.CountingDown()
	if e.invert {
		dir = !dir
	}
	return EncoderSample{
		Count:       count,
		TimestampMs: nowMs,
		RPM:         rpm,
		Direction:   dir,
		Valid:       atomic.LoadUint32(&e.initialized) != 0,
	}
}

// updateRPM implements the leaky-window RPM estimator described in §4.1:
// RPM = round(Δcount * 60000 / (PPR * 4 * Δt_ms)), saturating to int16.
func (e *EncoderCapture) updateRPM(count int32, nowMs uint32) int16 {
	lastTime := atomic.LoadUint32(&e.lastTimeMs)
	dtMs := nowMs - lastTime
	if dtMs < MinRPMWindowMs {
		return int16(atomic.LoadInt32(&e.lastRPM))
	}

	last := atomic.LoadInt32(&e.lastCount)
	delta := int32(uint32(count) - uint32(last))

	pprX4 := int64(e.ppr) * 4
	var rpm int64
	if pprX4 > 0 {
		rpm = roundDivInt64(int64(delta)*60000, pprX4*int64(dtMs))
	}
	if e.invert {
		rpm = -rpm
	}
	if rpm > 32767 {
		rpm = 32767
	} else if rpm < -32768 {
		rpm = -32768
	}

	atomic.StoreInt32(&e.lastCount, count)
	atomic.StoreUint32(&e.lastTimeMs, nowMs)
	atomic.StoreInt32(&e.lastRPM, int32(rpm))
	return int16(rpm)
}

// WrapSafeDelta computes the signed travel between two raw counter readings,
// correct across a 32-bit wrap as long as true travel fits in int32.
func WrapSafeDelta(now, prev int32) int32 {
	return int32(uint32(now) - uint32(prev))
}

// roundDivInt64 divides num by den, rounding to nearest instead of
// truncating toward zero, the same rounding discipline roundToInt32 applies
// to the Synchronizer's fractional-step accumulator. den is assumed > 0;
// sign is carried by num.
func roundDivInt64(num, den int64) int64 {
	if num >= 0 {
		return (num + den/2) / den
	}
	return (num - den/2) / den
}
