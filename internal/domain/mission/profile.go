package mission

// Profile is how a mission type is flown.
type Profile struct {
	Speed        float64 `json:"speed" yaml:"speed"`                 // units per tick
	BatteryDrain float64 `json:"battery_drain" yaml:"battery_drain"` // percent per tick
	Altitude     float64 `json:"altitude" yaml:"altitude"`
}

// DefaultProfiles mirrors the dashboard flight model.
func DefaultProfiles() map[Type]Profile {
	return map[Type]Profile{
		TypeMapping:      {Speed: 2, BatteryDrain: 0.2, Altitude: 2},
		TypeDelivery:     {Speed: 3, BatteryDrain: 0.4, Altitude: 4},
		TypeSurveillance: {Speed: 1.5, BatteryDrain: 0.15, Altitude: 8},
		TypeCustom:       {Speed: 2.5, BatteryDrain: 0.3, Altitude: 3},
	}
}

// ProfileFor looks up t, falling back to the mapping profile.
func ProfileFor(profiles map[Type]Profile, t Type) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	if p, ok := profiles[TypeMapping]; ok {
		return p
	}
	return DefaultProfiles()[TypeMapping]
}
