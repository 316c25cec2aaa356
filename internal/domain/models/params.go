package models

import "fmt"

// ParamFamily groups strategy parameters by the tuning rule family
// that may adjust them.
type ParamFamily string

const (
	FamilyEntryFilter ParamFamily = "entry_filter"
	FamilyVolumeFloor ParamFamily = "volume_floor"
	FamilyExpiryHours ParamFamily = "expiry_hours"
)

// ParamSpec is a named strategy parameter with its configured bounds.
type ParamSpec struct {
	Name    string
	Family  ParamFamily
	Min     float64
	Max     float64
	Default float64
}

// Validate checks the bound invariants. Min must be strictly positive
// because step sizes are relative to the current value.
func (p ParamSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("param name is required")
	}
	switch p.Family {
	case FamilyEntryFilter, FamilyVolumeFloor, FamilyExpiryHours:
	default:
		return fmt.Errorf("param %s: unknown family %q", p.Name, p.Family)
	}
	if p.Min <= 0 {
		return fmt.Errorf("param %s: min must be > 0, got %v", p.Name, p.Min)
	}
	if p.Min > p.Max {
		return fmt.Errorf("param %s: min %v > max %v", p.Name, p.Min, p.Max)
	}
	if p.Default < p.Min || p.Default > p.Max {
		return fmt.Errorf("param %s: default %v outside [%v, %v]", p.Name, p.Default, p.Min, p.Max)
	}
	return nil
}

// StrategySpec is a named strategy with its tunable parameter set.
type StrategySpec struct {
	Name   string
	Params []ParamSpec
}

// Param looks up a parameter spec by name.
func (s StrategySpec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ByFamily returns the parameters belonging to a rule family, in
// declaration order.
func (s StrategySpec) ByFamily(f ParamFamily) []ParamSpec {
	var out []ParamSpec
	for _, p := range s.Params {
		if p.Family == f {
			out = append(out, p)
		}
	}
	return out
}

// Defaults returns the configured default value per parameter.
func (s StrategySpec) Defaults() map[string]float64 {
	out := make(map[string]float64, len(s.Params))
	for _, p := range s.Params {
		out[p.Name] = p.Default
	}
	return out
}

// Validate checks all parameter specs.
func (s StrategySpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if len(s.Params) == 0 {
		return fmt.Errorf("strategy %s: no parameters configured", s.Name)
	}
	for _, p := range s.Params {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("strategy %s: %w", s.Name, err)
		}
	}
	return nil
}
