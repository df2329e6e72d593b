package core

// Synchronizer enforces the electronic-gearing contract between the spindle
// encoder and the carriage stepper. It owns a dedicated ISR timer, the same
// sorted-timer scheduler core/scheduler.go already provides for the step
// pulse timer, retimed to update_freq_hz.

import "sync/atomic"

const (
	// MinUpdateFreqHz / MaxUpdateFreqHz bound the Synchronizer ISR rate.
	MinUpdateFreqHz = 1000
	MaxUpdateFreqHz = 100000
)

// Synchronizer samples EncoderCapture at a fixed rate, accumulates fractional
// microsteps under the current GearingConfig, and commands StepGenerator.
type Synchronizer struct {
	enc  *EncoderCapture
	step *StepGenerator

	timer Timer

	stepsPerTick float64 // atomics would truncate float64; guarded by enable-bracketing per §5
	updateFreqHz uint32

	enabled         uint32
	armed           uint32 // 1 while s.timer is live in the scheduler's timerList
	lastCount       int32
	fractionalSteps float64

	fault    Fault
	hasFault uint32
}

// NewSynchronizer allocates a Synchronizer bound to an EncoderCapture and
// StepGenerator pair. The ISR timer is created paused.
func NewSynchronizer(enc *EncoderCapture, step *StepGenerator) (*Synchronizer, error) {
	if enc == nil || step == nil {
		return nil, Fault{Kind: FaultSyncInit, Message: "encoder and stepper are required"}
	}
	s := &Synchronizer{enc: enc, step: step, updateFreqHz: 10000}
	s.timer.Handler = s.isrTick
	return s, nil
}

// SetConfig updates steps-per-tick and the ISR cadence. If the ISR is
// currently enabled, it is paused first, the accumulator and last-count are
// reset, the timer is reprogrammed, then re-enabled — atomic from the
// caller's perspective per §5's reconfiguration-window rule.
func (s *Synchronizer) SetConfig(cfg GearingConfig) error {
	if cfg.UpdateFreqHz < MinUpdateFreqHz || cfg.UpdateFreqHz > MaxUpdateFreqHz {
		return Fault{Kind: FaultConfigInvalid, Message: "update_freq_hz out of range"}
	}
	wasEnabled := s.IsEnabled()
	if wasEnabled {
		s.Enable(false)
	}
	s.stepsPerTick = cfg.StepsPerEncoderTick
	s.updateFreqHz = cfg.UpdateFreqHz
	if wasEnabled {
		s.Enable(true)
	}
	return nil
}

// Enable starts or stops the ISR. On enable, the fractional accumulator
// resets to 0 and last_count resets to the encoder's current count, and the
// ISR timer is armed in the scheduler if it isn't already running (mirrors
// the teacher's ScheduleTimer-on-arm pattern in core/stepper.go).
func (s *Synchronizer) Enable(on bool) {
	if !on {
		atomic.StoreUint32(&s.enabled, 0)
		return
	}
	s.fractionalSteps = 0
	s.lastCount = s.enc.Count()
	atomic.StoreUint32(&s.enabled, 1)
	if atomic.CompareAndSwapUint32(&s.armed, 0, 1) {
		s.timer.WakeTime = GetTime() + TimerFromUS(1000000/s.updateFreqHz)
		ScheduleTimer(&s.timer)
	}
}

// IsEnabled reports whether the ISR is currently active.
func (s *Synchronizer) IsEnabled() bool {
	return atomic.LoadUint32(&s.enabled) != 0
}

// GetFault returns any latched Synchronizer fault.
func (s *Synchronizer) GetFault() (Fault, bool) {
	if atomic.LoadUint32(&s.hasFault) != 0 {
		return s.fault, true
	}
	return Fault{}, false
}

// isrTick is the Sync ISR body, run at updateFreqHz by the caller's
// timer-dispatch loop (ProcessTimers -> TimerDispatch -> this handler). It
// implements the seven-step algorithm from §4.3 exactly.
func (s *Synchronizer) isrTick(t *Timer) uint8 {
	if !s.IsEnabled() {
		atomic.StoreUint32(&s.armed, 0)
		return SF_DONE
	}

	now := s.enc.Count()
	delta := WrapSafeDelta(now, s.lastCount)
	if delta != 0 {
		s.fractionalSteps += float64(delta) * s.stepsPerTick
		whole := roundToInt32(s.fractionalSteps)
		if whole != 0 {
			s.step.MoveRelative(whole)
			s.fractionalSteps -= float64(whole)
		}
		s.lastCount = now
	}

	RecordTiming(EvtSyncTick, 0, GetTime(), uint32(delta), 0)

	if s.updateFreqHz == 0 {
		atomic.StoreUint32(&s.armed, 0)
		return SF_DONE
	}
	t.WakeTime += TimerFromUS(1000000 / s.updateFreqHz)
	return SF_RESCHEDULE
}

// Tick runs one ISR evaluation directly; used by hosts that drive the
// Synchronizer from their own periodic timer rather than the shared
// scheduler (and by tests).
func (s *Synchronizer) Tick() {
	s.isrTick(&s.timer)
}

func roundToInt32(f float64) int32 {
	if f >= 0 {
		return int32(f + 0.5)
	}
	return int32(f - 0.5)
}
