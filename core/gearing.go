package core

import "math"

// GearingConfig is the precomputed electronic-gearing ratio between the
// spindle encoder and the Z-axis stepper. Sign of StepsPerEncoderTick
// encodes feed direction; magnitude is microsteps produced per encoder tick.
type GearingConfig struct {
	StepsPerEncoderTick float64
	UpdateFreqHz        uint32 // 1_000..100_000
}

// MotionConfig is the mechanical description MotionCoordinator reduces to a
// GearingConfig. Mirrors the machine's change-gear train: thread pitch,
// leadscrew pitch, pulley ratio, motor/microstep resolution, encoder PPR.
type MotionConfig struct {
	ThreadPitchMM        float64 // mm/rev of spindle target travel; sign = towards-chuck
	LeadscrewPitchMM     float64 // effective mm/rev-of-leadscrew (imperial: 25.4/TPI)
	LeadscrewIsMetric    bool
	MotorPulleyTeeth     uint32
	LeadscrewPulleyTeeth uint32
	MotorNativeSteps     uint32
	Microsteps           uint32
	SyncFrequencyHz      uint32
	ReverseDirection     bool
	EncoderPPR           uint32
}

// Validate checks MotionConfig against the ranges consumed parameters in the
// spec require. Returns ConfigInvalid without mutating any state.
func (c MotionConfig) Validate() error {
	switch {
	case c.LeadscrewPitchMM <= 0:
		return Fault{Kind: FaultConfigInvalid, Message: "leadscrew pitch must be > 0"}
	case c.MotorPulleyTeeth < 1 || c.MotorPulleyTeeth > 1000:
		return Fault{Kind: FaultConfigInvalid, Message: "motor pulley teeth out of range"}
	case c.LeadscrewPulleyTeeth < 1 || c.LeadscrewPulleyTeeth > 1000:
		return Fault{Kind: FaultConfigInvalid, Message: "leadscrew pulley teeth out of range"}
	case c.MotorNativeSteps == 0:
		return Fault{Kind: FaultConfigInvalid, Message: "motor native steps must be > 0"}
	case c.Microsteps == 0:
		return Fault{Kind: FaultConfigInvalid, Message: "microsteps must be > 0"}
	case c.SyncFrequencyHz < 1000 || c.SyncFrequencyHz > 100000:
		return Fault{Kind: FaultConfigInvalid, Message: "sync frequency out of range"}
	case c.EncoderPPR < 100 || c.EncoderPPR > 10000:
		return Fault{Kind: FaultConfigInvalid, Message: "encoder PPR out of range"}
	}
	return nil
}

// StepsPerEncoderTick computes the signed electronic gearing ratio per
// §4.6: Ns = motor_native_steps * microsteps, Pe = encoder_ppr * 4,
// carriage mm/motor-rev = Pl * (Gm/Gl), steps/mm = Ns / (Pl*Gm/Gl),
// steps/tick = (Pt/Pe) * Ns / (Pl*Gm/Gl).
func (c MotionConfig) StepsPerEncoderTick() float64 {
	ns := float64(c.MotorNativeSteps) * float64(c.Microsteps)
	pe := float64(c.EncoderPPR) * 4
	mmPerMotorRev := c.LeadscrewPitchMM * (float64(c.MotorPulleyTeeth) / float64(c.LeadscrewPulleyTeeth))
	stepsPerMM := ns / mmPerMotorRev
	ratio := (c.ThreadPitchMM / pe) * stepsPerMM
	if c.ReverseDirection {
		ratio = -ratio
	}
	return ratio
}

// StepsPerMM is the carriage conversion factor used by
// ConvertMMToSteps/ConvertStepsToMM.
func (c MotionConfig) StepsPerMM() float64 {
	ns := float64(c.MotorNativeSteps) * float64(c.Microsteps)
	mmPerMotorRev := c.LeadscrewPitchMM * (float64(c.MotorPulleyTeeth) / float64(c.LeadscrewPulleyTeeth))
	return ns / mmPerMotorRev
}

// ConvertMMToSteps converts an absolute carriage position to microsteps.
func ConvertMMToSteps(mm float64, stepsPerMM float64) int32 {
	return int32(math.Round(mm * stepsPerMM))
}

// ConvertStepsToMM converts microsteps back to an absolute carriage
// position in millimeters.
func ConvertStepsToMM(steps int32, stepsPerMM float64) float64 {
	if stepsPerMM == 0 {
		return 0
	}
	return float64(steps) / stepsPerMM
}

// LeadscrewPitchFromTPI converts imperial threads-per-inch to effective
// mm/rev: Pl = 25.4 / TPI.
func LeadscrewPitchFromTPI(tpi float64) float64 {
	return 25.4 / tpi
}
