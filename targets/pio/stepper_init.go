//go:build rp2040

package pio

import (
	"elslathe/core"
)

// StepperBackendMode selects which backend implementation NewStepperBackend
// hands back for the Z-axis stepper.
type StepperBackendMode int

const (
	// StepperBackendAuto tries PIO first, falls back to GPIO if exhausted.
	StepperBackendAuto StepperBackendMode = iota
	// StepperBackendPIO uses PIO-based step generation (RP2040/RP2350 only)
	StepperBackendPIO
	// StepperBackendGPIO uses GPIO-based step generation (universal fallback)
	StepperBackendGPIO
)

var (
	// PIO allocation tracking.
	// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each.
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// NewStepperBackend builds the single Z-axis stepper backend the target's
// main() wires into core.NewStepGenerator. Only one backend is needed: the
// ELS core drives one stepper axis, not Klipper's N-axis pool.
func NewStepperBackend(mode StepperBackendMode) core.StepperBackend {
	switch mode {
	case StepperBackendPIO:
		if b := createPIOBackend(); b != nil {
			return b
		}
		return NewGPIOStepperBackend()
	case StepperBackendGPIO:
		return NewGPIOStepperBackend()
	case StepperBackendAuto:
		if b := createPIOBackend(); b != nil {
			return b
		}
		return NewGPIOStepperBackend()
	default:
		return NewGPIOStepperBackend()
	}
}

// createPIOBackend creates a PIO-based stepper backend.
// Returns nil if no PIO resources are available.
func createPIOBackend() core.StepperBackend {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return nil
	}
	return NewPIOStepperBackend(pioNum, smNum)
}

// allocatePIO allocates a PIO state machine round-robin across both blocks.
func allocatePIO() (uint8, uint8, bool) {
	for i := 0; i < 8; i++ { // 2 PIO x 4 SM = 8 total
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}

// GetPIOAllocationStatus returns PIO allocation status for debugging.
func GetPIOAllocationStatus() [2][4]bool {
	return pioAllocations
}
