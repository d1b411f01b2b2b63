package weather

import "strings"

// Columns is the fixed set of canonical weather fields stored and fed to the
// prediction model, in column order.
var Columns = []string{
	"wind_speed_10m",
	"wind_dir_10m",
	"wind_gusts_10m_1h",
	"wind_gusts_10m_24h",
	"t_2m",
	"t_max_2m_24h",
	"t_min_2m_24h",
	"msl_pressure",
	"precip_1h",
	"precip_24h",
	"weather_symbol_1h",
	"weather_symbol_24h",
	"uv",
	"sunrise",
	"sunset",
}

// DefaultParameters requests every field in Columns in its canonical unit.
var DefaultParameters = []string{
	"wind_speed_10m:ms",
	"wind_dir_10m:d",
	"wind_gusts_10m_1h:ms",
	"wind_gusts_10m_24h:ms",
	"t_2m:C",
	"t_max_2m_24h:C",
	"t_min_2m_24h:C",
	"msl_pressure:hPa",
	"precip_1h:mm",
	"precip_24h:mm",
	"weather_symbol_1h:idx",
	"weather_symbol_24h:idx",
	"uv:idx",
	"sunrise:sql",
	"sunset:sql",
}

// ParseParameter splits a raw parameter identifier into its canonical field
// name and unit code. The unit keeps only ASCII letters, so "km/h" becomes
// "kmh". An identifier without a colon has no unit.
func ParseParameter(raw string) (name, unit string) {
	name, unit, _ = strings.Cut(raw, ":")
	return name, strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, unit)
}

type quantity int

const (
	otherQuantity quantity = iota
	temperature
	windSpeed
	pressure
)

func quantityOf(name string) quantity {
	switch {
	case strings.HasPrefix(name, "t"):
		return temperature
	case strings.HasPrefix(name, "wind_gusts"), strings.HasPrefix(name, "wind_speed"):
		return windSpeed
	case strings.HasPrefix(name, "msl_pressure"):
		return pressure
	}
	return otherQuantity
}

type conversion struct {
	toCanonical   func(float64) float64
	fromCanonical func(float64) float64
}

// conversions maps a unit code to canonical units: degrees Celsius, metres
// per second and hectopascal. Units missing here are already canonical.
var conversions = map[quantity]map[string]conversion{
	temperature: {
		"F": {
			toCanonical:   func(v float64) float64 { return (v - 32) / 1.8 },
			fromCanonical: func(v float64) float64 { return v*1.8 + 32 },
		},
		"K": {
			toCanonical:   func(v float64) float64 { return v - 273.15 },
			fromCanonical: func(v float64) float64 { return v + 273.15 },
		},
	},
	windSpeed: {
		"kmh": {
			toCanonical:   func(v float64) float64 { return v / 3.6 },
			fromCanonical: func(v float64) float64 { return v * 3.6 },
		},
		"kn": {
			toCanonical:   func(v float64) float64 { return v / 1.94384001 },
			fromCanonical: func(v float64) float64 { return v * 1.94384001 },
		},
		"bft": {
			toCanonical:   func(v float64) float64 { return v * 0.836 },
			fromCanonical: func(v float64) float64 { return v / 0.836 },
		},
	},
	pressure: {
		"Pa": {
			toCanonical:   func(v float64) float64 { return v / 100 },
			fromCanonical: func(v float64) float64 { return v * 100 },
		},
	},
}

// Normalize converts v from unit to the canonical unit of the field name.
// Timestamps and unknown units are returned unchanged.
func Normalize(name string, v Value, unit string) Value {
	if v.IsTime() {
		return v
	}
	c, ok := conversions[quantityOf(name)][unit]
	if !ok {
		return v
	}
	return Number(c.toCanonical(v.num))
}

// Denormalize is the inverse of Normalize: it converts a canonical value of
// the field name into unit.
func Denormalize(name string, v Value, unit string) Value {
	if v.IsTime() {
		return v
	}
	c, ok := conversions[quantityOf(name)][unit]
	if !ok {
		return v
	}
	return Number(c.fromCanonical(v.num))
}

// Preprocess parses a raw parameter identifier and normalizes v accordingly.
func Preprocess(rawParameter string, v Value) (string, Value) {
	name, unit := ParseParameter(rawParameter)
	return name, Normalize(name, v, unit)
}
