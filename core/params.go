package core

// ParamRegistry holds typed, validated runtime parameters with dirty-bit
// tracking, grouped by domain (Encoder, Stepper, Motion, ZAxis, System,
// Spindle). It mirrors the registry/dictionary pattern the reference uses
// for its object lookup table: a name-keyed map guarded by one RWMutex,
// with validation performed on write rather than on read.

import (
	"sync"
)

// ParamDomain groups related parameters for the UI boundary.
type ParamDomain string

const (
	DomainEncoder ParamDomain = "encoder"
	DomainStepper ParamDomain = "stepper"
	DomainMotion  ParamDomain = "motion"
	DomainZAxis   ParamDomain = "zaxis"
	DomainSystem  ParamDomain = "system"
	DomainSpindle ParamDomain = "spindle"
)

// Validator checks a candidate value before it is committed. Returns a
// ConfigInvalid Fault on rejection.
type Validator func(v float64) error

// paramEntry is one registered parameter's live state.
type paramEntry struct {
	domain    ParamDomain
	value     float64
	def       float64
	validator Validator
	dirty     bool
}

// ParamRegistry is the typed parameter store. Safe for concurrent use; all
// mutation is main-loop-only (never called from an ISR) so a plain mutex
// suffices, unlike the atomics used in the hot ISR paths.
type ParamRegistry struct {
	mu     sync.RWMutex
	params map[string]*paramEntry
}

// NewParamRegistry constructs an empty registry. Callers register the
// parameter set they support with Register before first use.
func NewParamRegistry() *ParamRegistry {
	return &ParamRegistry{params: make(map[string]*paramEntry)}
}

// Register adds a parameter with its default and validator. Re-registering
// an existing name overwrites its definition and resets it to the default.
func (r *ParamRegistry) Register(name string, domain ParamDomain, def float64, validator Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params[name] = &paramEntry{domain: domain, value: def, def: def, validator: validator}
}

// Get reads a parameter's current value. ok is false if name is unregistered.
func (r *ParamRegistry) Get(name string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.params[name]
	if !ok {
		return 0, false
	}
	return e.value, true
}

// Set validates and writes a new value. The dirty bit is set only when the
// value actually changes. Returns ConfigInvalid if name is unregistered or
// the validator rejects the value; no state changes on rejection.
func (r *ParamRegistry) Set(name string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.params[name]
	if !ok {
		return Fault{Kind: FaultConfigInvalid, Message: "unknown parameter: " + name}
	}
	if e.validator != nil {
		if err := e.validator(value); err != nil {
			return err
		}
	}
	if e.value != value {
		e.value = value
		e.dirty = true
	}
	return nil
}

// IsDirty reports whether a parameter has changed since its last commit.
func (r *ParamRegistry) IsDirty(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.params[name]
	return ok && e.dirty
}

// Commit iterates dirty parameters and invokes persist for each; on success
// the dirty bit clears. persist is user-supplied — the registry has no
// opinion on storage format.
func (r *ParamRegistry) Commit(persist func(name string, domain ParamDomain, value float64) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.params {
		if !e.dirty {
			continue
		}
		if err := persist(name, e.domain, e.value); err != nil {
			return err
		}
		e.dirty = false
	}
	return nil
}

// RangeValidator builds a Validator rejecting values outside [lo, hi].
func RangeValidator(lo, hi float64) Validator {
	return func(v float64) error {
		if v < lo || v > hi {
			return Fault{Kind: FaultConfigInvalid, Message: "value out of range"}
		}
		return nil
	}
}

// EnumValidator builds a Validator accepting only the given discrete values.
func EnumValidator(allowed ...float64) Validator {
	return func(v float64) error {
		for _, a := range allowed {
			if a == v {
				return nil
			}
		}
		return Fault{Kind: FaultConfigInvalid, Message: "value not in enumeration"}
	}
}

// BoolValidator accepts only 0 or 1.
func BoolValidator() Validator {
	return EnumValidator(0, 1)
}

// microstepValues is the set of legal microstep divisors per §6.
var microstepValues = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256}

// MicrostepValidator accepts only the power-of-two divisors the driver
// supports.
func MicrostepValidator() Validator {
	return EnumValidator(microstepValues...)
}

// RegisterDefaults populates a ParamRegistry with the full parameter set
// from §6: Encoder, Stepper, Z-axis mechanical, and System domains.
func RegisterDefaults(r *ParamRegistry) {
	r.Register("encoder.ppr", DomainEncoder, 1024, RangeValidator(100, 10000))
	r.Register("encoder.filter_level", DomainEncoder, 4, RangeValidator(0, 15))
	r.Register("encoder.invert_direction", DomainEncoder, 0, BoolValidator())

	r.Register("stepper.microsteps", DomainStepper, 8, MicrostepValidator())
	r.Register("stepper.invert_enable", DomainStepper, 0, BoolValidator())
	r.Register("stepper.max_speed_hz", DomainStepper, 200000, RangeValidator(1, 200000))

	r.Register("zaxis.motor_pulley_teeth", DomainZAxis, 20, RangeValidator(1, 1000))
	r.Register("zaxis.leadscrew_pulley_teeth", DomainZAxis, 20, RangeValidator(1, 1000))
	r.Register("zaxis.leadscrew_pitch", DomainZAxis, 4, RangeValidator(0.0001, 1000))
	r.Register("zaxis.leadscrew_is_metric", DomainZAxis, 1, BoolValidator())
	r.Register("zaxis.max_jog_speed_mm_per_min", DomainZAxis, 1000, RangeValidator(0.0001, 1e6))
	r.Register("zaxis.backlash_mm", DomainZAxis, 0, RangeValidator(0, 10))

	r.Register("system.measurement_unit_is_metric", DomainSystem, 1, BoolValidator())
	r.Register("system.jog_enabled", DomainSystem, 1, BoolValidator())
	r.Register("system.default_jog_speed_index", DomainSystem, 0, RangeValidator(0, 255))
}
