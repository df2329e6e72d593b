package core

// StepGenerator drives step/dir/enable pulses to a stepper driver.
// Inspired by Klipper's stepper.c step-compression state machine, simplified
// to the fixed-rate pulse timer an electronic lead screw needs: no move
// queue, just a target position the ISR chases one microstep per tick.

import "sync/atomic"

// Step ISR states
const (
	stateIdle      = 0
	stateDirSetup  = 1
	statePulseHigh = 2
)

// Driver timing constants (calibrated against common step/dir drivers).
const (
	MinPulseWidthNs  = 2500 // MIN_PULSE_WIDTH >= 2.5us
	MinDirSetupNs    = 5000 // MIN_DIR_SETUP >= 5us
	MinEnableSetupNs = 5000 // MIN_ENABLE_SETUP >= 5us
	MaxPulseTimerHz  = 200000

	// stepTimerPeriodTicks is the step ISR's fixed dispatch period: half of
	// one MaxPulseTimerHz cycle, matching MinPulseWidthNs (2.5us at the
	// 12MHz scheduler clock). Each dispatch advances the state machine by
	// one transition and a step takes two (Idle->PulseHigh, PulseHigh->Idle),
	// so the effective step ceiling is exactly MaxPulseTimerHz.
	stepTimerPeriodTicks = TimerFreq / (2 * MaxPulseTimerHz)
)

// StepperPosition is an immutable snapshot of StepGenerator state.
type StepperPosition struct {
	Current   int32
	Target    int32
	Enabled   bool
	Running   bool
	Direction bool // true = reverse
}

// StepGenerator emits step pulses and tracks position in microsteps.
// current/target/running/direction are touched by the step ISR and read by
// the main loop as single-word values; callers never need a lock.
type StepGenerator struct {
	backend      StepperBackend
	invertEnable bool

	current   int32 // atomic; advanced only by the step ISR, re-based by AdjustPosition
	target    int32 // atomic; writers: main loop / Synchronizer / JogProfile
	enabled   uint32
	running   uint32
	direction uint32 // 0 = forward, 1 = reverse

	state uint8 // step ISR state: Idle/DirSetup/PulseHigh

	timer      Timer
	timerArmed uint32 // 1 while s.timer is live in the scheduler's timerList

	fault      Fault
	hasFault   uint32
	microsteps uint32

	// Continuous (jog) mode
	continuous      uint32 // 1 when run_continuous is active
	continuousDir   bool
	targetHz        float32
	currentHz       float32
	accelStepsPerS2 float32
	lastTickMicros  uint64
	nextStepMicros  uint64
}

// NewStepGenerator wires a StepGenerator to its hardware backend. Pins idle
// LOW until Enable/SetAbsolute/MoveRelative commands motion.
func NewStepGenerator(backend StepperBackend, stepPin, dirPin, enablePin uint8, invertStep, invertDir, invertEnable bool) (*StepGenerator, error) {
	if err := backend.Init(stepPin, dirPin, enablePin, invertStep, invertDir, invertEnable); err != nil {
		return nil, Fault{Kind: FaultStepperInit, Message: err.Error()}
	}
	s := &StepGenerator{backend: backend, invertEnable: invertEnable}
	s.timer.Handler = s.stepTimerHandler
	return s, nil
}

// armTimer schedules the step ISR's dedicated hardware timer if it isn't
// already live, matching the teacher's ScheduleTimer-on-arm pattern
// (core/stepper.go's loadNextMove in the reference). Idempotent: safe to
// call on every MoveRelative/SetAbsolute/RunContinuous.
func (s *StepGenerator) armTimer() {
	if atomic.CompareAndSwapUint32(&s.timerArmed, 0, 1) {
		s.timer.WakeTime = GetTime() + stepTimerPeriodTicks
		ScheduleTimer(&s.timer)
	}
}

// stepTimerHandler is s.timer's Handler: it runs Tick at the fixed pulse
// rate and keeps rescheduling itself (SF_RESCHEDULE) as long as there is
// motion in flight, parking (SF_DONE) once both ordinary and continuous
// motion are idle so the scheduler isn't spun for nothing.
func (s *StepGenerator) stepTimerHandler(t *Timer) uint8 {
	s.Tick(uint64(TimerToUS(GetTime())))
	if atomic.LoadUint32(&s.running) == 0 && atomic.LoadUint32(&s.continuous) == 0 {
		atomic.StoreUint32(&s.timerArmed, 0)
		return SF_DONE
	}
	t.WakeTime += stepTimerPeriodTicks
	return SF_RESCHEDULE
}

// SetMicrosteps is advisory: it records the divisor used by upstream gearing
// math. The physical driver is assumed DIP-configured to match.
func (s *StepGenerator) SetMicrosteps(n uint32) {
	atomic.StoreUint32(&s.microsteps, n)
}

func (s *StepGenerator) Microsteps() uint32 {
	return atomic.LoadUint32(&s.microsteps)
}

// Enable asserts the driver enable line.
func (s *StepGenerator) Enable() {
	if s.hasFaultLatched() {
		return
	}
	s.backend.SetEnable(true)
	atomic.StoreUint32(&s.enabled, 1)
}

// Disable stops motion first, then deasserts the enable line.
func (s *StepGenerator) Disable() {
	s.Stop()
	s.backend.SetEnable(false)
	atomic.StoreUint32(&s.enabled, 0)
}

// MoveRelative adjusts target by delta microsteps and arms the pulse timer
// if it was idle. ISR-safe: a single atomic add plus a running flag.
func (s *StepGenerator) MoveRelative(delta int32) {
	if delta == 0 || s.hasFaultLatched() {
		return
	}
	atomic.AddInt32(&s.target, delta)
	RecordTiming(EvtStepMove, 0, GetTime(), uint32(delta), 0)
	atomic.StoreUint32(&s.running, 1)
	s.armTimer()
}

// SetAbsolute sets target directly and arms the pulse timer if needed.
func (s *StepGenerator) SetAbsolute(pos int32) {
	if s.hasFaultLatched() {
		return
	}
	atomic.StoreInt32(&s.target, pos)
	if pos != atomic.LoadInt32(&s.current) {
		atomic.StoreUint32(&s.running, 1)
		s.armTimer()
	}
}

// AdjustPosition adds delta to both current and target without moving. Used
// by Synchronizer to re-base after extraordinary events.
func (s *StepGenerator) AdjustPosition(delta int32) {
	atomic.AddInt32(&s.current, delta)
	atomic.AddInt32(&s.target, delta)
}

// Stop halts motion immediately and drives STEP low.
func (s *StepGenerator) Stop() {
	atomic.StoreUint32(&s.running, 0)
	atomic.StoreUint32(&s.continuous, 0)
	s.backend.Stop()
}

// EmergencyStop stops motion, disables the driver, and latches an EStop
// fault. Subsequent move commands are no-ops until the fault is cleared.
func (s *StepGenerator) EmergencyStop() {
	s.Stop()
	s.backend.SetEnable(false)
	atomic.StoreUint32(&s.enabled, 0)
	s.fault = Fault{Kind: FaultEStop, Message: "step generator emergency stop"}
	atomic.StoreUint32(&s.hasFault, 1)
	RecordTiming(EvtFaultLatched, 0, GetTime(), uint32(FaultEStop), 0)
}

// ClearFault clears a latched StepGenerator fault. Callers (MotionCoordinator)
// are responsible for deciding when this is safe.
func (s *StepGenerator) ClearFault() {
	atomic.StoreUint32(&s.hasFault, 0)
	s.fault = Fault{}
}

func (s *StepGenerator) hasFaultLatched() bool {
	return atomic.LoadUint32(&s.hasFault) != 0
}

// GetFault returns the latched fault, if any.
func (s *StepGenerator) GetFault() (Fault, bool) {
	if s.hasFaultLatched() {
		return s.fault, true
	}
	return Fault{}, false
}

// RunContinuous enters jog mode: target is ignored, cadence is dictated by
// an internal trapezoidal accel integrator evaluated each Tick.
func (s *StepGenerator) RunContinuous(direction bool, speedHz, accelStepsPerS2 float32) {
	if s.hasFaultLatched() {
		return
	}
	s.continuousDir = direction
	s.targetHz = speedHz
	s.accelStepsPerS2 = accelStepsPerS2
	atomic.StoreUint32(&s.continuous, 1)
	atomic.StoreUint32(&s.running, 1)
	s.armTimer()
}

// Status returns a point-in-time snapshot of the stepper position.
func (s *StepGenerator) Status() StepperPosition {
	return StepperPosition{
		Current:   atomic.LoadInt32(&s.current),
		Target:    atomic.LoadInt32(&s.target),
		Enabled:   atomic.LoadUint32(&s.enabled) != 0,
		Running:   atomic.LoadUint32(&s.running) != 0,
		Direction: atomic.LoadUint32(&s.direction) != 0,
	}
}

// Tick advances the step ISR state machine by one pulse-timer period.
// Must complete in roughly 1us; touches only backend GPIOs and this
// struct's atomics. nowMicros is the current free-running microsecond clock,
// used only by the continuous-mode accel integrator.
func (s *StepGenerator) Tick(nowMicros uint64) {
	if atomic.LoadUint32(&s.continuous) != 0 {
		s.tickContinuous(nowMicros)
		return
	}

	if atomic.LoadUint32(&s.enabled) == 0 || atomic.LoadUint32(&s.running) == 0 {
		s.backend.Stop()
		s.state = stateIdle
		return
	}

	switch s.state {
	case stateIdle:
		delta := atomic.LoadInt32(&s.target) - atomic.LoadInt32(&s.current)
		if delta == 0 {
			atomic.StoreUint32(&s.running, 0)
			return
		}
		wantReverse := delta < 0
		curReverse := atomic.LoadUint32(&s.direction) != 0
		if wantReverse != curReverse {
			var dv uint32
			if wantReverse {
				dv = 1
			}
			atomic.StoreUint32(&s.direction, dv)
			s.backend.SetDirection(wantReverse)
			s.state = stateDirSetup
			return
		}
		s.state = statePulseHigh
		s.backend.Step()

	case stateDirSetup:
		// One tick of delay satisfies the driver's direction-setup time.
		s.state = stateIdle

	case statePulseHigh:
		if atomic.LoadUint32(&s.direction) != 0 {
			atomic.AddInt32(&s.current, -1)
		} else {
			atomic.AddInt32(&s.current, 1)
		}
		s.state = stateIdle
	}
}

// tickContinuous runs the trapezoidal-accel jog integrator: ramp current_hz
// toward target_hz, emit a step whenever the accumulated phase crosses the
// next scheduled step time.
func (s *StepGenerator) tickContinuous(nowMicros uint64) {
	if s.lastTickMicros == 0 {
		s.lastTickMicros = nowMicros
	}
	dt := float32(nowMicros-s.lastTickMicros) / 1e6
	s.lastTickMicros = nowMicros

	if s.currentHz < s.targetHz {
		s.currentHz += s.accelStepsPerS2 * dt
		if s.currentHz > s.targetHz {
			s.currentHz = s.targetHz
		}
	} else if s.currentHz > s.targetHz {
		s.currentHz -= s.accelStepsPerS2 * dt
		if s.currentHz < s.targetHz {
			s.currentHz = s.targetHz
		}
	}

	if s.currentHz <= 0 {
		s.currentHz = 0
		if s.targetHz <= 0 {
			atomic.StoreUint32(&s.continuous, 0)
			atomic.StoreUint32(&s.running, 0)
			s.backend.Stop()
		}
		return
	}

	if nowMicros < s.nextStepMicros {
		return
	}

	curReverse := atomic.LoadUint32(&s.direction) != 0
	if s.continuousDir != curReverse {
		var dv uint32
		if s.continuousDir {
			dv = 1
		}
		atomic.StoreUint32(&s.direction, dv)
		s.backend.SetDirection(s.continuousDir)
	} else {
		s.backend.Step()
		if s.continuousDir {
			atomic.AddInt32(&s.current, -1)
		} else {
			atomic.AddInt32(&s.current, 1)
		}
	}

	s.nextStepMicros += uint64(1e6 / s.currentHz)
}
