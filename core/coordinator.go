package core

// MotionCoordinator is the single authority over mode, configuration, and
// orchestration of the other core components. Grounded on the reference's
// Application/MotionControl state machine, collapsed to the mode table in
// §4.6 and re-expressed without the HMI coupling the original carries.

import "sync/atomic"

// Mode is the MotionCoordinator's top-level state.
type Mode uint8

const (
	ModeUninitialized Mode = iota
	ModeIdle
	ModeThreading
	ModeTurningFeed
	ModeJog
	ModeFault
)

func (m Mode) String() string {
	switch m {
	case ModeUninitialized:
		return "uninitialized"
	case ModeIdle:
		return "idle"
	case ModeThreading:
		return "threading"
	case ModeTurningFeed:
		return "turning_feed"
	case ModeJog:
		return "jog"
	case ModeFault:
		return "fault"
	default:
		return "unknown"
	}
}

func (m Mode) isELS() bool {
	return m == ModeThreading || m == ModeTurningFeed
}

// MotionStatus is the aggregated status snapshot returned by Status().
type MotionStatus struct {
	EncoderCount        int32
	StepperCurrentSteps int32
	StepperTargetSteps  int32
	SpindleRPM          int16
	Mode                Mode
	MotorEnabled        bool
	Running             bool
	Fault               Fault
	HasFault            bool
}

// MotionCoordinator owns EncoderCapture, StepGenerator, Synchronizer,
// JogProfile, and AutoStop, and is the sole mutator of MotionConfig.
type MotionCoordinator struct {
	enc  *EncoderCapture
	step *StepGenerator
	sync *Synchronizer
	jog  *JogProfile
	stop *AutoStop

	mode      Mode
	priorMode Mode // mode to restore to when Jog ends

	cfg        MotionConfig
	stepsPerMM float64

	motorEnabled bool

	fault        Fault
	hasFault     uint32
	faultPending uint32 // consume_fault() one-shot
	targetHit    uint32 // consume_target_reached() one-shot
}

// NewMotionCoordinator wires a MotionCoordinator to already-constructed
// components. Begin completes EncoderCapture's hardware init and enters
// Idle; StepGenerator and Synchronizer are initialized by their constructors.
func NewMotionCoordinator(enc *EncoderCapture, step *StepGenerator, sync *Synchronizer, jog *JogProfile, stop *AutoStop) *MotionCoordinator {
	return &MotionCoordinator{
		enc: enc, step: step, sync: sync, jog: jog, stop: stop,
		mode: ModeUninitialized,
	}
}

// Begin initializes EncoderCapture (a no-op if the caller already began it)
// and enters Idle. StepGenerator and Synchronizer acquire their hardware in
// NewStepGenerator/NewSynchronizer, so a caller keeps §3's C1->C2->C3
// Lifecycle order by beginning the encoder before constructing them.
func (m *MotionCoordinator) Begin(encPinA, encPinB uint8, encFilterLevel uint8) error {
	if err := m.enc.Begin(encPinA, encPinB, encFilterLevel); err != nil {
		m.latchFault(err.(Fault))
		return err
	}
	m.mode = ModeIdle
	return nil
}

// End reverses Begin: disables Synchronizer, stops StepGenerator, and tears
// nothing down on EncoderCapture (hardware counters are read-only after
// init, so there is nothing to release).
func (m *MotionCoordinator) End() {
	m.sync.Enable(false)
	m.step.Stop()
}

// SetConfig recomputes steps_per_encoder_tick from the mechanical
// description and applies it to Synchronizer. Validates first; on failure
// no state changes.
func (m *MotionCoordinator) SetConfig(cfg MotionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	m.stepsPerMM = cfg.StepsPerMM()
	m.jog.SetConversion(m.stepsPerMM)
	m.step.SetMicrosteps(cfg.Microsteps)
	gearing := GearingConfig{
		StepsPerEncoderTick: cfg.StepsPerEncoderTick(),
		UpdateFreqHz:        cfg.SyncFrequencyHz,
	}
	return m.sync.SetConfig(gearing)
}

// SetFeedDirection flips the sign of steps_per_encoder_tick and reapplies
// configuration. towardsChuck selects the negative-pitch convention.
func (m *MotionCoordinator) SetFeedDirection(towardsChuck bool) error {
	m.cfg.ReverseDirection = towardsChuck
	return m.SetConfig(m.cfg)
}

// SetMode transitions from Idle to an ELS mode (Threading or TurningFeed).
// Per the table in §4.6: stop current motion, reconfigure Sync, leave
// motor_enabled as-is.
func (m *MotionCoordinator) SetMode(mode Mode) error {
	if mode != ModeThreading && mode != ModeTurningFeed {
		return Fault{Kind: FaultConfigInvalid, Message: "set_mode accepts only Threading or TurningFeed"}
	}
	if m.mode == ModeFault {
		return Fault{Kind: FaultConfigInvalid, Message: "cannot change mode while latched in Fault"}
	}
	m.stopMotion()
	if err := m.sync.SetConfig(GearingConfig{StepsPerEncoderTick: m.cfg.StepsPerEncoderTick(), UpdateFreqHz: m.cfg.SyncFrequencyHz}); err != nil {
		return err
	}
	m.mode = mode
	return nil
}

// EnableMotor asserts the stepper driver enable line and, if currently in
// an ELS mode, re-enables the Synchronizer ISR.
func (m *MotionCoordinator) EnableMotor() {
	m.step.Enable()
	m.motorEnabled = true
	if m.mode.isELS() {
		m.sync.Enable(true)
	}
}

// DisableMotor stops sync, stops motion, and deasserts the enable line.
func (m *MotionCoordinator) DisableMotor() {
	m.sync.Enable(false)
	m.step.Stop()
	m.step.Disable()
	m.motorEnabled = false
}

// StartMotion re-enables Synchronizer when in an ELS mode with the motor
// enabled. EnableMotor does the same; SetMode leaves Synchronizer disabled,
// so StartMotion resumes ELS motion after a mode change.
func (m *MotionCoordinator) StartMotion() {
	if m.mode.isELS() && m.motorEnabled {
		m.sync.Enable(true)
	}
}

// StopMotion halts Synchronizer-driven and jog motion without touching mode
// or the enable line.
func (m *MotionCoordinator) StopMotion() {
	m.stopMotion()
}

func (m *MotionCoordinator) stopMotion() {
	m.sync.Enable(false)
	if m.jog.IsActive() {
		m.jog.EndJog()
	}
	m.step.Stop()
}

// EmergencyStop is the universal cancellation primitive. Disables Sync,
// emergency-stops the stepper, and latches an EStop fault.
func (m *MotionCoordinator) EmergencyStop() {
	m.sync.Enable(false)
	m.step.EmergencyStop()
	m.latchFault(Fault{Kind: FaultEStop, Message: "emergency stop"})
	m.mode = ModeFault
}

// ClearFault clears latched faults on StepGenerator and MotionCoordinator
// and returns to Idle. Callers decide when this is safe.
func (m *MotionCoordinator) ClearFault() {
	m.step.ClearFault()
	atomic.StoreUint32(&m.hasFault, 0)
	m.fault = Fault{}
	m.mode = ModeIdle
}

// BeginJog disables Synchronizer and enters Jog mode, remembering the prior
// mode so EndJog can restore it.
func (m *MotionCoordinator) BeginJog(direction bool, speedMMPerMin float64, maxSpeedHz, accelStepsPerS2 float32) {
	if m.mode != ModeJog {
		m.priorMode = m.mode
	}
	m.sync.Enable(false)
	m.jog.BeginJog(direction, speedMMPerMin, maxSpeedHz, accelStepsPerS2)
	m.mode = ModeJog
}

// EndJog decelerates to stop and, if the prior mode was an ELS mode and the
// motor is still enabled, re-enables Synchronizer.
func (m *MotionCoordinator) EndJog() {
	m.jog.EndJog()
	m.mode = m.priorMode
	if m.mode.isELS() && m.motorEnabled {
		m.sync.Enable(true)
	}
}

// ConfigureAbsoluteTargetStop arms or disarms AutoStop.
func (m *MotionCoordinator) ConfigureAbsoluteTargetStop(target int32, armed bool) {
	if armed {
		m.stop.Arm(target)
	} else {
		m.stop.Clear()
	}
}

// ClearAbsoluteTargetStop disarms AutoStop without clearing reached.
func (m *MotionCoordinator) ClearAbsoluteTargetStop() {
	m.stop.Clear()
}

// WasTargetStopReachedAndHalted polls AutoStop against current stepper
// position/direction and, on trigger, halts motion per §4.5's semantics.
func (m *MotionCoordinator) WasTargetStopReachedAndHalted() bool {
	status := m.step.Status()
	dir := Forward
	if status.Direction {
		dir = Reverse
	}
	if m.stop.Poll(status.Current, dir) == TriggerHalt {
		m.sync.Enable(false)
		if m.jog.IsActive() {
			m.jog.EndJog()
		}
		atomic.StoreUint32(&m.targetHit, 1)
	}
	return m.stop.ConsumeReached()
}

// ConsumeTargetReached is the one-shot UI-facing accessor for the AutoStop
// trigger.
func (m *MotionCoordinator) ConsumeTargetReached() bool {
	return atomic.SwapUint32(&m.targetHit, 0) != 0
}

// ConsumeFault is the one-shot UI-facing accessor for a latched fault.
func (m *MotionCoordinator) ConsumeFault() (Fault, bool) {
	if atomic.SwapUint32(&m.faultPending, 0) == 0 {
		return Fault{}, false
	}
	return m.fault, true
}

func (m *MotionCoordinator) latchFault(f Fault) {
	m.fault = f
	atomic.StoreUint32(&m.hasFault, 1)
	atomic.StoreUint32(&m.faultPending, 1)
	RecordTiming(EvtFaultLatched, 0, GetTime(), uint32(f.Kind), 0)
}

// Status returns an aggregated snapshot of the system.
func (m *MotionCoordinator) Status() MotionStatus {
	stepStatus := m.step.Status()
	sample := m.enc.Sample(GetTime() / (TimerFreq / 1000))

	var f Fault
	var hasFault bool
	if atomic.LoadUint32(&m.hasFault) != 0 {
		f = m.fault
		hasFault = true
	} else if sf, ok := m.step.GetFault(); ok {
		f = sf
		hasFault = true
	}

	return MotionStatus{
		EncoderCount:        sample.Count,
		StepperCurrentSteps: stepStatus.Current,
		StepperTargetSteps:  stepStatus.Target,
		SpindleRPM:          sample.RPM,
		Mode:                m.mode,
		MotorEnabled:        m.motorEnabled,
		Running:             stepStatus.Running,
		Fault:               f,
		HasFault:            hasFault,
	}
}

// ConvertUnitsToSteps converts an absolute carriage position in mm to
// microsteps using the currently configured gearing.
func (m *MotionCoordinator) ConvertUnitsToSteps(mm float32) int32 {
	return ConvertMMToSteps(float64(mm), m.stepsPerMM)
}

// ConvertStepsToUnits converts microsteps back to an absolute mm position.
func (m *MotionCoordinator) ConvertStepsToUnits(steps int32) float32 {
	return float32(ConvertStepsToMM(steps, m.stepsPerMM))
}
