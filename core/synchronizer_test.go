package core

import "testing"

func newTestSynchronizer(t *testing.T) (*Synchronizer, *fakeQuadBackend, *StepGenerator) {
	t.Helper()
	quadBackend := &fakeQuadBackend{}
	enc := NewEncoderCapture(quadBackend, 1024, false)
	if err := enc.Begin(6, 7, 0); err != nil {
		t.Fatalf("enc.Begin: %v", err)
	}
	stepBackend := &fakeStepperBackend{}
	step, err := NewStepGenerator(stepBackend, 2, 3, 4, false, false, false)
	if err != nil {
		t.Fatalf("NewStepGenerator: %v", err)
	}
	step.Enable()

	sync, err := NewSynchronizer(enc, step)
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	return sync, quadBackend, step
}

func TestSynchronizerDisabledIgnoresEncoderMotion(t *testing.T) {
	sync, quad, step := newTestSynchronizer(t)
	if err := sync.SetConfig(GearingConfig{StepsPerEncoderTick: 1, UpdateFreqHz: 10000}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	quad.count = 100
	sync.Tick()

	if step.Status().Target != 0 {
		t.Fatal("a disabled Synchronizer must not command any motion")
	}
}

// Drives the real Synchronizer.Enable/Tick path (not a hand-duplicated
// reimplementation) to verify the §4.3 accumulator actually reaches
// StepGenerator.target through MoveRelative.
func TestSynchronizerTickAccumulatesWholeSteps(t *testing.T) {
	sync, quad, step := newTestSynchronizer(t)
	if err := sync.SetConfig(GearingConfig{StepsPerEncoderTick: 0.5, UpdateFreqHz: 10000}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	sync.Enable(true)

	// Each tick advances the encoder by 1 count; at 0.5 steps/tick, every
	// other tick should emit exactly one whole step.
	for i := 0; i < 10; i++ {
		quad.count++
		sync.Tick()
	}

	if got := step.Status().Target; got != 5 {
		t.Fatalf("target after 10 encoder ticks at 0.5 steps/tick = %d, want 5", got)
	}
}

// S3 — feed direction flip mid-run: reconfiguring with a negated
// StepsPerEncoderTick flips the sign of subsequent accumulation without touching motion already
// queued, driven through the real SetConfig/Enable/Tick path.
func TestSynchronizerScenarioS3FeedDirectionFlipMidRun(t *testing.T) {
	sync, quad, step := newTestSynchronizer(t)
	cfg := GearingConfig{StepsPerEncoderTick: 1, UpdateFreqHz: 10000}
	if err := sync.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	sync.Enable(true)

	quad.count = 10
	sync.Tick()
	if got := step.Status().Target; got != 10 {
		t.Fatalf("target after forward run = %d, want 10", got)
	}

	// Flip feed direction; SetConfig pauses and resumes the ISR internally.
	cfg.StepsPerEncoderTick = -1
	if err := sync.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig (reversed): %v", err)
	}

	quad.count = 20 // ten more encoder ticks in the same physical direction
	sync.Tick()
	if got := step.Status().Target; got != 0 {
		t.Fatalf("target after reversed run = %d, want 0 (10 - 10)", got)
	}
}

// S4 — wrap: the encoder's raw counter wraps through the int32 boundary
// while the Synchronizer is enabled; WrapSafeDelta must keep the
// accumulation correct end to end.
func TestSynchronizerScenarioS4WrapSafeAccumulation(t *testing.T) {
	sync, quad, step := newTestSynchronizer(t)
	if err := sync.SetConfig(GearingConfig{StepsPerEncoderTick: 1, UpdateFreqHz: 10000}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	start := int32(1<<31 - 5)
	quad.count = start
	sync.Enable(true) // lastCount seeded from the current (pre-wrap) count

	quad.count = int32(uint32(start) + 10) // wraps through the int32 boundary
	sync.Tick()

	if got := step.Status().Target; got != 10 {
		t.Fatalf("target after wrap = %d, want 10", got)
	}
}

func TestSynchronizerSetConfigRejectsOutOfRangeFrequency(t *testing.T) {
	sync, _, _ := newTestSynchronizer(t)
	err := sync.SetConfig(GearingConfig{StepsPerEncoderTick: 1, UpdateFreqHz: 1})
	if err == nil {
		t.Fatal("expected rejection of an out-of-range update frequency")
	}
	if sync.IsEnabled() {
		t.Fatal("a rejected SetConfig must not enable the ISR")
	}
}

func TestSynchronizerEnableResetsAccumulatorAndLastCount(t *testing.T) {
	sync, quad, step := newTestSynchronizer(t)
	_ = sync.SetConfig(GearingConfig{StepsPerEncoderTick: 1, UpdateFreqHz: 10000})

	quad.count = 500 // motion before Enable must not be picked up retroactively
	sync.Enable(true)
	sync.Tick()

	if got := step.Status().Target; got != 0 {
		t.Fatalf("target after Enable with no new encoder motion = %d, want 0", got)
	}
}
