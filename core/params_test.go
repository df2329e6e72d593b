package core

import "testing"

func TestParamRegistryGetSetRoundTrip(t *testing.T) {
	r := NewParamRegistry()
	r.Register("encoder.ppr", DomainEncoder, 1024, RangeValidator(100, 10000))

	v, ok := r.Get("encoder.ppr")
	if !ok || v != 1024 {
		t.Fatalf("Get = (%v, %v), want (1024, true)", v, ok)
	}

	if err := r.Set("encoder.ppr", 2000); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, _ = r.Get("encoder.ppr")
	if v != 2000 {
		t.Fatalf("Get after Set = %v, want 2000", v)
	}
}

func TestParamRegistryUnknownParameter(t *testing.T) {
	r := NewParamRegistry()
	if _, ok := r.Get("does.not.exist"); ok {
		t.Fatal("Get on unregistered name should report ok=false")
	}
	if err := r.Set("does.not.exist", 1); err == nil {
		t.Fatal("Set on unregistered name should return ConfigInvalid")
	}
}

func TestParamRegistryValidationRejectsWithoutMutating(t *testing.T) {
	r := NewParamRegistry()
	r.Register("encoder.ppr", DomainEncoder, 1024, RangeValidator(100, 10000))

	if err := r.Set("encoder.ppr", 50); err == nil {
		t.Fatal("expected validation error for out-of-range value")
	}
	v, _ := r.Get("encoder.ppr")
	if v != 1024 {
		t.Fatalf("rejected Set must not mutate state, got %v", v)
	}
	if r.IsDirty("encoder.ppr") {
		t.Fatal("rejected Set must not set the dirty bit")
	}
}

func TestParamRegistryDirtyBitOnlyOnActualChange(t *testing.T) {
	r := NewParamRegistry()
	r.Register("stepper.microsteps", DomainStepper, 8, MicrostepValidator())

	if r.IsDirty("stepper.microsteps") {
		t.Fatal("freshly registered parameter should not be dirty")
	}

	if err := r.Set("stepper.microsteps", 8); err != nil {
		t.Fatalf("Set to same value: %v", err)
	}
	if r.IsDirty("stepper.microsteps") {
		t.Fatal("setting to the same value must not mark dirty")
	}

	if err := r.Set("stepper.microsteps", 16); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !r.IsDirty("stepper.microsteps") {
		t.Fatal("setting to a different value must mark dirty")
	}
}

func TestParamRegistryCommitClearsDirtyOnSuccess(t *testing.T) {
	r := NewParamRegistry()
	r.Register("zaxis.backlash_mm", DomainZAxis, 0, RangeValidator(0, 10))
	_ = r.Set("zaxis.backlash_mm", 0.05)

	var persisted []string
	err := r.Commit(func(name string, domain ParamDomain, value float64) error {
		persisted = append(persisted, name)
		if domain != DomainZAxis {
			t.Errorf("unexpected domain %v for %s", domain, name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != "zaxis.backlash_mm" {
		t.Fatalf("Commit should have persisted the one dirty param, got %v", persisted)
	}
	if r.IsDirty("zaxis.backlash_mm") {
		t.Fatal("Commit should clear the dirty bit on success")
	}
}

func TestParamRegistryCommitStopsOnPersistError(t *testing.T) {
	r := NewParamRegistry()
	r.Register("zaxis.backlash_mm", DomainZAxis, 0, RangeValidator(0, 10))
	_ = r.Set("zaxis.backlash_mm", 0.05)

	sentinel := Fault{Kind: FaultConfigInvalid, Message: "disk full"}
	err := r.Commit(func(name string, domain ParamDomain, value float64) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Commit should propagate persist error, got %v", err)
	}
	if !r.IsDirty("zaxis.backlash_mm") {
		t.Fatal("dirty bit must survive a failed persist")
	}
}

func TestEnumAndMicrostepValidators(t *testing.T) {
	mv := MicrostepValidator()
	for _, good := range []float64{1, 2, 4, 8, 16, 32, 64, 128, 256} {
		if err := mv(good); err != nil {
			t.Errorf("microstep %v should be valid, got %v", good, err)
		}
	}
	if err := mv(3); err == nil {
		t.Error("microstep 3 should be rejected")
	}

	bv := BoolValidator()
	if err := bv(0); err != nil {
		t.Error("0 should be a valid bool")
	}
	if err := bv(1); err != nil {
		t.Error("1 should be a valid bool")
	}
	if err := bv(2); err == nil {
		t.Error("2 should be rejected as a bool")
	}
}

func TestRegisterDefaultsPopulatesFullParameterSet(t *testing.T) {
	r := NewParamRegistry()
	RegisterDefaults(r)

	expected := map[string]float64{
		"encoder.ppr":                       1024,
		"encoder.filter_level":              4,
		"encoder.invert_direction":          0,
		"stepper.microsteps":                8,
		"stepper.invert_enable":             0,
		"stepper.max_speed_hz":              200000,
		"zaxis.motor_pulley_teeth":          20,
		"zaxis.leadscrew_pulley_teeth":      20,
		"zaxis.leadscrew_pitch":             4,
		"zaxis.leadscrew_is_metric":         1,
		"zaxis.max_jog_speed_mm_per_min":    1000,
		"zaxis.backlash_mm":                 0,
		"system.measurement_unit_is_metric": 1,
		"system.jog_enabled":                1,
		"system.default_jog_speed_index":    0,
	}
	for name, want := range expected {
		got, ok := r.Get(name)
		if !ok {
			t.Errorf("expected default parameter %q to be registered", name)
			continue
		}
		if got != want {
			t.Errorf("%s default = %v, want %v", name, got, want)
		}
	}
}
