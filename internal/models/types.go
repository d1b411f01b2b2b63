package models

import "time"

// EnergyRecord is one row of the inverter energy history. Counters that the
// archive did not report are nil.
type EnergyRecord struct {
	Time          time.Time `json:"time"`
	Produced      *float64  `json:"produced,omitempty"`
	Consumed      *float64  `json:"consumed,omitempty"`
	MinusAbsolute *float64  `json:"minus_absolute,omitempty"`
	PlusAbsolute  *float64  `json:"plus_absolute,omitempty"`
	DiffMinus     *float64  `json:"diff_minus,omitempty"`
	DiffPlus      *float64  `json:"diff_plus,omitempty"`
}

// TimeSeriesData represents a single aggregated energy data point
type TimeSeriesData struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Prediction is the forecast energy production for one timestamp.
type Prediction struct {
	Date           time.Time `json:"date"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	EnergyProduced float64   `json:"energy_produced"`
}

// PredictionResponse is the result of one model run.
type PredictionResponse struct {
	PVID           string       `json:"pv_id"`
	PredictionTime time.Time    `json:"prediction_time"`
	ModelID        string       `json:"model_id"`
	Predictions    []Prediction `json:"predictions"`
}
