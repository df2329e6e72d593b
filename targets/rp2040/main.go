//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"elslathe/core"
	"elslathe/targets/pio"
)

// pinDriverCS and driverAddr are outside the PinRole table: the SPI chip
// select is a bus-addressing concern for the driver transport, not a role
// the core itself ever references.
const (
	pinDriverCS = machine.GPIO5
	driverAddr  = 0
)

// pinTable is the reference carriage/spindle wiring. Board-specific
// deployments override these by editing this table; the core itself only
// ever speaks in pin roles (core.PinRole), resolved via core.PinFor.
var pinTable = []core.PinAssignment{
	{Role: core.PinRoleStep, Pin: core.GPIOPin(machine.GPIO2)},
	{Role: core.PinRoleDir, Pin: core.GPIOPin(machine.GPIO3)},
	{Role: core.PinRoleEnable, Pin: core.GPIOPin(machine.GPIO4)},
	{Role: core.PinRoleEncoderA, Pin: core.GPIOPin(machine.GPIO6)},
	{Role: core.PinRoleEncoderB, Pin: core.GPIOPin(machine.GPIO7)},
}

var coordinator *core.MotionCoordinator
var params *core.ParamRegistry
var driver *core.TMC5240Driver

func main() {
	// Disable the watchdog on boot; a previous session's timeout must not
	// persist across reset.
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitClock()

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)

	params = core.NewParamRegistry()
	core.RegisterDefaults(params)

	if err := buildCoordinator(); err != nil {
		faultBlink()
	}

	readyBlink()

	for {
		UpdateSystemTime()
		core.ProcessTimers()
		coordinator.WasTargetStopReachedAndHalted()
		time.Sleep(10 * time.Microsecond)
	}
}

// buildCoordinator wires C1->C2->C3 in the order §3's Lifecycle requires,
// then assembles JogProfile/AutoStop/MotionCoordinator on top and applies
// the default mechanical configuration from ParamRegistry.
func buildCoordinator() error {
	ppr, _ := params.Get("encoder.ppr")
	filterLevel, _ := params.Get("encoder.filter_level")
	invertEnc, _ := params.Get("encoder.invert_direction")

	quad := NewGPIOQuadratureBackend()
	enc := core.NewEncoderCapture(quad, uint32(ppr), invertEnc != 0)

	pinStep, _ := core.PinFor(pinTable, core.PinRoleStep)
	pinDir, _ := core.PinFor(pinTable, core.PinRoleDir)
	pinEnable, _ := core.PinFor(pinTable, core.PinRoleEnable)
	pinEncA, _ := core.PinFor(pinTable, core.PinRoleEncoderA)
	pinEncB, _ := core.PinFor(pinTable, core.PinRoleEncoderB)

	// C1's hardware comes first; coordinator.Begin's own enc.Begin below is
	// then a no-op.
	if err := enc.Begin(uint8(pinEncA), uint8(pinEncB), uint8(filterLevel)); err != nil {
		return err
	}

	invertEnable, _ := params.Get("stepper.invert_enable")
	stepBackend := pio.NewStepperBackend(pio.StepperBackendAuto)
	step, err := core.NewStepGenerator(stepBackend,
		uint8(pinStep), uint8(pinDir), uint8(pinEnable),
		false, false, invertEnable != 0)
	if err != nil {
		return err
	}

	sync, err := core.NewSynchronizer(enc, step)
	if err != nil {
		return err
	}

	jog := core.NewJogProfile(step, 0)
	stop := &core.AutoStop{}

	coordinator = core.NewMotionCoordinator(enc, step, sync, jog, stop)
	if err := coordinator.Begin(uint8(pinEncA), uint8(pinEncB), uint8(filterLevel)); err != nil {
		return err
	}

	if err := configureDriver(); err != nil {
		return err
	}

	return applyDefaultConfig()
}

// configureDriver brings up the TMC5240 over SPI and pushes fixed run/hold
// currents plus the microstep setting read from ParamRegistry. A
// driver fault here does not block motion: many installations run the
// TMC5240 fully DIP-configured with no register bus wired at all, per §4.2's
// "physical driver is DIP-configured" allowance.
func configureDriver() error {
	comm := NewSPIDriverComm(machine.SPI0, map[uint8]machine.Pin{driverAddr: pinDriverCS})
	if err := comm.Setup(); err != nil {
		return nil
	}
	if err := machine.SPI0.Configure(machine.SPIConfig{Frequency: 2000000, Mode: 3}); err != nil {
		return nil
	}

	microsteps, _ := params.Get("stepper.microsteps")
	invertEnable, _ := params.Get("stepper.invert_enable")

	driver = core.NewTMC5240Driver(comm, driverAddr)
	_ = driver.Configure(core.DriverCurrentConfig{
		IRun:        31,
		IHold:       10,
		IHoldDelay:  10,
		Microsteps:  uint32(microsteps),
		StealthChop: true,
		InvertMotor: invertEnable != 0,
	})
	return nil
}

// applyDefaultConfig reads the mechanical parameters and pushes them through
// MotionCoordinator.SetConfig, the same path a UI boundary would use after
// a parameter commit.
func applyDefaultConfig() error {
	motorTeeth, _ := params.Get("zaxis.motor_pulley_teeth")
	screwTeeth, _ := params.Get("zaxis.leadscrew_pulley_teeth")
	pitch, _ := params.Get("zaxis.leadscrew_pitch")
	isMetric, _ := params.Get("zaxis.leadscrew_is_metric")
	microsteps, _ := params.Get("stepper.microsteps")
	encPPR, _ := params.Get("encoder.ppr")

	if isMetric == 0 {
		pitch = core.LeadscrewPitchFromTPI(pitch)
	}

	cfg := core.MotionConfig{
		ThreadPitchMM:        1.0,
		LeadscrewPitchMM:     pitch,
		LeadscrewIsMetric:    isMetric != 0,
		MotorPulleyTeeth:     uint32(motorTeeth),
		LeadscrewPulleyTeeth: uint32(screwTeeth),
		MotorNativeSteps:     200,
		Microsteps:           uint32(microsteps),
		SyncFrequencyHz:      10000,
		EncoderPPR:           uint32(encPPR),
	}
	return coordinator.SetConfig(cfg)
}

// readyBlink flashes the onboard LED three times to signal a clean boot,
// mirroring the reference's standalone-mode boot indicator.
func readyBlink() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; i < 3; i++ {
		led.High()
		time.Sleep(200 * time.Millisecond)
		led.Low()
		time.Sleep(200 * time.Millisecond)
	}
}

// faultBlink flashes the onboard LED rapidly forever to signal an
// initialization fault that left the system with no safe motion path.
func faultBlink() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
