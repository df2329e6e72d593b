package core

import "testing"

// S1 — 1 mm/rev metric feed, 4 mm leadscrew, 1:1 pulleys, 200 native x 8
// microsteps, 1024 PPR encoder. Expect steps_per_encoder_tick = 0.09765625
// and exactly 400 steps after one spindle revolution (4096 ticks).
func TestGearingScenarioS1(t *testing.T) {
	cfg := MotionConfig{
		ThreadPitchMM:        1,
		LeadscrewPitchMM:     4,
		MotorPulleyTeeth:     1,
		LeadscrewPulleyTeeth: 1,
		MotorNativeSteps:     200,
		Microsteps:           8,
		EncoderPPR:           1024,
	}

	got := cfg.StepsPerEncoderTick()
	want := 0.09765625
	if got != want {
		t.Fatalf("StepsPerEncoderTick() = %v, want %v", got, want)
	}

	total := got * 4096
	if total != 400 {
		t.Fatalf("one spindle rev should yield exactly 400 steps, got %v", total)
	}
}

// S2 — 20 TPI imperial leadscrew, 1.25mm thread target. Expect delta after
// 4096 ticks to land on 1574 or 1575 with |fractional| <= 0.5.
func TestGearingScenarioS2(t *testing.T) {
	cfg := MotionConfig{
		ThreadPitchMM:        1.25,
		LeadscrewPitchMM:     LeadscrewPitchFromTPI(20),
		MotorPulleyTeeth:     1,
		LeadscrewPulleyTeeth: 1,
		MotorNativeSteps:     200,
		Microsteps:           8,
		EncoderPPR:           1024,
	}

	ratio := cfg.StepsPerEncoderTick()
	const wantRatio = 1.25 / 4096 * 1600 / 1.27
	if diff := ratio - wantRatio; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("StepsPerEncoderTick() = %v, want ~%v", ratio, wantRatio)
	}

	whole, frac := accumulateWholeSteps(ratio, 4096)
	if whole != 1574 && whole != 1575 {
		t.Fatalf("expected 1574 or 1575 steps, got %d (residual %v)", whole, frac)
	}
	if frac > 0.5 || frac < -0.5 {
		t.Fatalf("residual accumulator %v exceeds +-0.5 step bound", frac)
	}
}

// accumulateWholeSteps mirrors Synchronizer.isrTick's per-tick
// round-and-retain-residual algorithm for n unit ticks, without requiring a
// live EncoderCapture/StepGenerator pair.
func accumulateWholeSteps(perTick float64, ticks int) (int32, float64) {
	var frac float64
	var total int32
	for i := 0; i < ticks; i++ {
		frac += perTick
		whole := roundToInt32(frac)
		if whole != 0 {
			total += whole
			frac -= float64(whole)
		}
	}
	return total, frac
}

func TestStepsPerMMAndConversionRoundTrip(t *testing.T) {
	cfg := MotionConfig{
		LeadscrewPitchMM:     4,
		MotorPulleyTeeth:     1,
		LeadscrewPulleyTeeth: 1,
		MotorNativeSteps:     200,
		Microsteps:           8,
	}
	stepsPerMM := cfg.StepsPerMM()

	for _, mm := range []float64{0, 1.5, -3.25, 100} {
		steps := ConvertMMToSteps(mm, stepsPerMM)
		back := ConvertStepsToMM(steps, stepsPerMM)
		stepWidth := 1 / stepsPerMM
		if diff := back - mm; diff > stepWidth || diff < -stepWidth {
			t.Errorf("round-trip mm=%v -> steps=%d -> mm'=%v exceeds one step width", mm, steps, back)
		}
	}
}

func TestMotionConfigValidate(t *testing.T) {
	valid := MotionConfig{
		LeadscrewPitchMM:     4,
		MotorPulleyTeeth:     20,
		LeadscrewPulleyTeeth: 20,
		MotorNativeSteps:     200,
		Microsteps:           8,
		SyncFrequencyHz:      10000,
		EncoderPPR:           1024,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}

	cases := []MotionConfig{
		{LeadscrewPitchMM: 0, MotorPulleyTeeth: 20, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 200, Microsteps: 8, SyncFrequencyHz: 10000, EncoderPPR: 1024},
		{LeadscrewPitchMM: 4, MotorPulleyTeeth: 0, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 200, Microsteps: 8, SyncFrequencyHz: 10000, EncoderPPR: 1024},
		{LeadscrewPitchMM: 4, MotorPulleyTeeth: 20, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 0, Microsteps: 8, SyncFrequencyHz: 10000, EncoderPPR: 1024},
		{LeadscrewPitchMM: 4, MotorPulleyTeeth: 20, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 200, Microsteps: 0, SyncFrequencyHz: 10000, EncoderPPR: 1024},
		{LeadscrewPitchMM: 4, MotorPulleyTeeth: 20, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 200, Microsteps: 8, SyncFrequencyHz: 500, EncoderPPR: 1024},
		{LeadscrewPitchMM: 4, MotorPulleyTeeth: 20, LeadscrewPulleyTeeth: 20, MotorNativeSteps: 200, Microsteps: 8, SyncFrequencyHz: 10000, EncoderPPR: 50},
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected ConfigInvalid, got nil", i)
		}
	}
}
