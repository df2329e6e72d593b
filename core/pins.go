package core

// PinRole names a GPIO's function in the core. Particular pin numbers are a
// platform concern; the core only ever speaks in roles.
type PinRole uint8

const (
	PinRoleStep PinRole = iota
	PinRoleDir
	PinRoleEnable
	PinRoleEncoderA
	PinRoleEncoderB
)

func (r PinRole) String() string {
	switch r {
	case PinRoleStep:
		return "step"
	case PinRoleDir:
		return "dir"
	case PinRoleEnable:
		return "enable"
	case PinRoleEncoderA:
		return "encoder_a"
	case PinRoleEncoderB:
		return "encoder_b"
	default:
		return "unknown"
	}
}

// PinAssignment maps a role to a platform GPIO number. Targets build a slice
// of these from board-specific constants and hand them to the components
// that need them during Begin.
type PinAssignment struct {
	Role PinRole
	Pin  GPIOPin
}

// PinFor looks up the GPIO assigned to role in table. Targets build table
// once from their board wiring and resolve every pin role through it rather
// than passing bare pin numbers around.
func PinFor(table []PinAssignment, role PinRole) (GPIOPin, bool) {
	for _, a := range table {
		if a.Role == role {
			return a.Pin, true
		}
	}
	return 0, false
}
