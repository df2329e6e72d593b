package core

// TMC5240Driver configures a TMC5240 stepper driver chip's microstep
// interpolation, run/hold current, and StealthChop chopper settings at
// startup. It is independent of the step ISR path: once configured, the
// physical driver free-runs on STEP/DIR/ENABLE exactly as §4.2 describes,
// matching "physical driver is DIP-configured" for drivers that use pins
// instead of registers, while giving register-configurable drivers the
// same startup contract.

// RegisterComm is the wire-level access the driver needs: a single
// register read/write pair, addressed for multi-drop buses (UART/SPI
// daisy chains). Grounded on the scottfeldman-drivers TMC5160 RegisterComm
// abstraction, generalized to any transport a target wires in.
type RegisterComm interface {
	WriteRegister(reg uint8, value uint32, address uint8) error
	ReadRegister(reg uint8, address uint8) (uint32, error)
}

// DriverCurrentConfig holds the run/hold current and chopper timing values
// applied during Configure.
type DriverCurrentConfig struct {
	IRun         uint8 // 0-31
	IHold        uint8 // 0-31
	IHoldDelay   uint8 // 0-15
	Microsteps   uint32
	StealthChop  bool
	InvertMotor  bool
}

// TMC5240Driver wraps a RegisterComm and address for one axis.
type TMC5240Driver struct {
	comm    RegisterComm
	address uint8
}

// NewTMC5240Driver binds a driver instance to its bus address.
func NewTMC5240Driver(comm RegisterComm, address uint8) *TMC5240Driver {
	return &TMC5240Driver{comm: comm, address: address}
}

// microstepToMRES converts a microstep divisor to the CHOPCONF MRES field
// (0 = 256 microsteps ... 8 = fullstep), per the TMC5240 datasheet encoding.
func microstepToMRES(microsteps uint32) uint32 {
	switch microsteps {
	case 256:
		return 0
	case 128:
		return 1
	case 64:
		return 2
	case 32:
		return 3
	case 16:
		return 4
	case 8:
		return 5
	case 4:
		return 6
	case 2:
		return 7
	default:
		return 8 // fullstep
	}
}

// Configure clears the driver's fault latches and writes current, chopper,
// and microstep-interpolation settings. Mirrors the reference driver's
// Begin() sequence: clear GSTAT, then GCONF, then CHOPCONF, then IHOLD_IRUN.
func (d *TMC5240Driver) Configure(cfg DriverCurrentConfig) error {
	if err := d.write(TMC5240_GSTAT, 0x7); err != nil { // clear reset/drv_err/uv_cp
		return err
	}

	gconf := uint32(0)
	if cfg.StealthChop {
		gconf |= TMC5240_GCONF_EN_PWM_MODE
	}
	if cfg.InvertMotor {
		gconf |= TMC5240_GCONF_SHAFT
	}
	if err := d.write(TMC5240_GCONF, gconf); err != nil {
		return err
	}

	mres := microstepToMRES(cfg.Microsteps)
	chopconf := uint32(TMC5240_CHOPCONF_DEFAULT)&0x0FFFFFFF | (mres << 24)
	if err := d.write(TMC5240_CHOPCONF, chopconf); err != nil {
		return err
	}

	ihold := uint32(cfg.IHold&0x1F) | (uint32(cfg.IRun&0x1F) << 8) | (uint32(cfg.IHoldDelay&0xF) << 16)
	if err := d.write(TMC5240_IHOLD_IRUN, ihold); err != nil {
		return err
	}

	return nil
}

// Status reads DRV_STATUS and reports whether the driver has latched an
// overtemperature or short-circuit (to ground or supply) condition worth
// surfacing as a Fault to MotionCoordinator. The StallGuard bit is not
// treated as a fault.
func (d *TMC5240Driver) Status() (raw uint32, faulted bool, err error) {
	raw, err = d.comm.ReadRegister(TMC5240_DRV_STATUS, d.address)
	if err != nil {
		return 0, false, err
	}
	faulted = raw&(TMC5240_DRV_STATUS_OT|TMC5240_DRV_STATUS_S2GA|TMC5240_DRV_STATUS_S2GB|
		TMC5240_DRV_STATUS_S2VSA|TMC5240_DRV_STATUS_S2VSB) != 0
	return raw, faulted, nil
}

func (d *TMC5240Driver) write(reg uint8, value uint32) error {
	return d.comm.WriteRegister(reg, value, d.address)
}
