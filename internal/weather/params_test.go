package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseParameter(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantName string
		wantUnit string
	}{
		{name: "simple", raw: "t_2m:C", wantName: "t_2m", wantUnit: "C"},
		{name: "unit with slash", raw: "wind_gusts:km/h", wantName: "wind_gusts", wantUnit: "kmh"},
		{name: "unit with digits", raw: "precip_1h:mm3", wantName: "precip_1h", wantUnit: "mm"},
		{name: "no unit", raw: "uv", wantName: "uv", wantUnit: ""},
		{name: "empty unit", raw: "uv:", wantName: "uv", wantUnit: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, unit := ParseParameter(tt.raw)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		field string
		unit  string
		in    float64
		want  float64
	}{
		{name: "fahrenheit", field: "t_2m", unit: "F", in: 212, want: 100},
		{name: "kelvin", field: "t_max_2m_24h", unit: "K", in: 273.15, want: 0},
		{name: "celsius is canonical", field: "t_2m", unit: "C", in: 20.1, want: 20.1},
		{name: "gusts km/h", field: "wind_gusts", unit: "kmh", in: 3.6, want: 1},
		{name: "wind speed km/h", field: "wind_speed_10m", unit: "kmh", in: 36, want: 10},
		{name: "knots", field: "wind_gusts_10m_1h", unit: "kn", in: 1.94384001, want: 1},
		{name: "beaufort", field: "wind_speed_10m", unit: "bft", in: 10, want: 8.36},
		{name: "m/s is canonical", field: "wind_gusts", unit: "ms", in: 1, want: 1},
		{name: "pascal", field: "msl_pressure", unit: "Pa", in: 101325, want: 1013.25},
		{name: "unknown quantity", field: "asdf", unit: "h", in: 7, want: 7},
		{name: "unknown unit", field: "t_2m", unit: "R", in: 7, want: 7},
		{name: "wind direction untouched", field: "wind_dir_10m", unit: "kmh", in: 90, want: 90},
		{name: "freezing point fahrenheit", field: "t_2m", unit: "F", in: 32, want: 0},
		{name: "one kelvin", field: "t_2m", unit: "K", in: 1, want: -272.15},
		{name: "one pascal", field: "msl_pressure", unit: "Pa", in: 1, want: 0.01},
		{name: "one beaufort", field: "wind_gusts", unit: "bft", in: 1, want: 0.836},
		{name: "one knot", field: "wind_gusts", unit: "kn", in: 1, want: 0.5144456307389208},
		{name: "one km/h", field: "wind_gusts", unit: "kmh", in: 1, want: 1 / 3.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.field, Number(tt.in), tt.unit).Float()
			assert.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalize_TimestampUnchanged(t *testing.T) {
	ts := time.Date(2025, 6, 28, 4, 31, 0, 0, time.UTC)

	got := Normalize("t_2m", Timestamp(ts), "F")

	assert.True(t, got.IsTime())
	v, ok := got.Time()
	assert.True(t, ok)
	assert.True(t, ts.Equal(v))
}

func TestPreprocess(t *testing.T) {
	ts := time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		in       Value
		wantName string
		want     Value
	}{
		{name: "km/h", raw: "wind_gusts:km/h", in: Number(3.6), wantName: "wind_gusts", want: Number(1)},
		{name: "ms", raw: "wind_gusts:ms", in: Number(1), wantName: "wind_gusts", want: Number(1)},
		{name: "m/s", raw: "wind_gusts:m/s", in: Number(1), wantName: "wind_gusts", want: Number(1)},
		{name: "unknown", raw: "asdf:h", in: Number(1), wantName: "asdf", want: Number(1)},
		{name: "unknown timestamp", raw: "asdf:h", in: Timestamp(ts), wantName: "asdf", want: Timestamp(ts)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, got := Preprocess(tt.raw, tt.in)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDenormalize_RoundTrip(t *testing.T) {
	cases := map[string]string{
		"t_2m":           "F",
		"t_min_2m_24h":   "K",
		"wind_speed_10m": "kmh",
		"wind_gusts_1h":  "kn",
		"wind_gusts_10m": "bft",
		"msl_pressure":   "Pa",
	}

	for field, unit := range cases {
		canonical := Normalize(field, Number(42), unit)
		back, ok := Denormalize(field, canonical, unit).Float()
		assert.True(t, ok)
		assert.InDelta(t, 42, back, 1e-9, "%s:%s", field, unit)
	}
}
