package core

// AutoStop halts carriage motion at a preset absolute Z position. It never
// touches StepGenerator directly — poll() only reports a trigger and
// MotionCoordinator carries out the stop, mirroring the trigger-once latch
// pattern the reference's own fault-signalling primitives use.

import "sync/atomic"

// Direction names the sense of current travel passed to Poll.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

// TriggerAction is the result of a Poll call.
type TriggerAction uint8

const (
	TriggerNone TriggerAction = iota
	TriggerHalt
)

// AutoStop is an absolute-target latch observed by MotionCoordinator.
type AutoStop struct {
	armed          uint32
	targetAbsSteps int32
	reached        uint32
}

// Arm stores the target and arms the latch.
func (a *AutoStop) Arm(targetAbsSteps int32) {
	atomic.StoreInt32(&a.targetAbsSteps, targetAbsSteps)
	atomic.StoreUint32(&a.reached, 0)
	atomic.StoreUint32(&a.armed, 1)
}

// Clear disarms the latch without affecting the reached flag.
func (a *AutoStop) Clear() {
	atomic.StoreUint32(&a.armed, 0)
}

// IsArmed reports whether the latch is currently armed.
func (a *AutoStop) IsArmed() bool {
	return atomic.LoadUint32(&a.armed) != 0
}

// Poll is called periodically by MotionCoordinator's main loop (never from
// an ISR). Returns TriggerHalt exactly once when the target is first
// reached or passed; subsequent polls return TriggerNone until rearmed.
func (a *AutoStop) Poll(currentPos int32, direction Direction) TriggerAction {
	if atomic.LoadUint32(&a.armed) == 0 {
		return TriggerNone
	}
	target := atomic.LoadInt32(&a.targetAbsSteps)

	var hit bool
	switch direction {
	case Forward:
		hit = currentPos >= target
	case Reverse:
		hit = currentPos <= target
	}
	if !hit {
		return TriggerNone
	}

	atomic.StoreUint32(&a.reached, 1)
	atomic.StoreUint32(&a.armed, 0)
	return TriggerHalt
}

// ConsumeReached atomically reads-and-clears the reached flag.
func (a *AutoStop) ConsumeReached() bool {
	return atomic.SwapUint32(&a.reached, 0) != 0
}
