package core

import "testing"

func newTestJog(t *testing.T) (*JogProfile, *fakeStepperBackend, *StepGenerator) {
	t.Helper()
	sg, backend := newTestStepper(t)
	sg.Enable()
	// 10 steps/mm conversion for easy arithmetic.
	j := NewJogProfile(sg, 10)
	return j, backend, sg
}

// S6 — Jog override: begin_jog(TowardsChuck, 300mm/min) should compute
// target_hz from the conversion and enter continuous mode with the
// requested direction.
func TestJogBeginJogScenarioS6(t *testing.T) {
	j, _, sg := newTestJog(t)

	j.BeginJog(TowardsChuck, 300, 1000, 500)
	if !j.IsActive() {
		t.Fatal("jog should be active after BeginJog")
	}

	state := j.State()
	if state.Direction != TowardsChuck {
		t.Fatalf("direction = %v, want TowardsChuck", state.Direction)
	}
	// 300 mm/min = 5 mm/s * 10 steps/mm = 50 Hz.
	wantHz := float32(50)
	if state.TargetHz != wantHz {
		t.Fatalf("target_hz = %v, want %v", state.TargetHz, wantHz)
	}

	status := sg.Status()
	if !status.Running {
		t.Fatal("stepper should be running in continuous mode")
	}
}

func TestJogSpeedCappedAtMaxSpeedHz(t *testing.T) {
	j, _, _ := newTestJog(t)
	j.BeginJog(AwayFromChuck, 100000, 200, 500) // absurd speed, should clamp
	if j.State().TargetHz != 200 {
		t.Fatalf("target_hz = %v, want capped at 200", j.State().TargetHz)
	}
}

func TestJogEndJogDecelerateAndClearsActive(t *testing.T) {
	j, _, _ := newTestJog(t)
	j.BeginJog(TowardsChuck, 300, 1000, 500)
	j.EndJog()

	if j.IsActive() {
		t.Fatal("EndJog should clear Active immediately, not wait for the ramp")
	}
	if j.State().TargetHz != 0 {
		t.Fatal("EndJog should command a 0Hz target for deceleration")
	}
}

func TestJogEndJogWhenNotActiveIsNoOp(t *testing.T) {
	j, backend, _ := newTestJog(t)
	j.EndJog()
	if backend.steps != 0 {
		t.Fatal("EndJog on an inactive profile should not touch the backend")
	}
}

func TestJogUpdateSpeedWhileInactiveIsNoOp(t *testing.T) {
	j, _, _ := newTestJog(t)
	j.UpdateSpeed(500, 1000)
	if j.State().TargetHz != 0 {
		t.Fatal("UpdateSpeed before BeginJog should have no effect")
	}
}

func TestJogUpdateSpeedRetargetsWhileActive(t *testing.T) {
	j, _, _ := newTestJog(t)
	j.BeginJog(TowardsChuck, 300, 1000, 500)
	j.UpdateSpeed(600, 1000)

	// 600 mm/min = 10 mm/s * 10 steps/mm = 100 Hz.
	if j.State().TargetHz != 100 {
		t.Fatalf("target_hz after UpdateSpeed = %v, want 100", j.State().TargetHz)
	}
}
