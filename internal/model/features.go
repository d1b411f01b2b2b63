package model

import (
	"time"

	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

// Features is the model input in split orientation: one column list and one
// row per flattened weather record. Cells are float64, RFC 3339 strings for
// timestamps, or nil for fields the forecast did not report.
type Features struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// FeatureColumns lists the model input columns in order.
var FeatureColumns = append([]string{"lat", "lon", "date"}, weather.Columns...)

// BuildFeatures lays out records as model input. Fields outside
// weather.Columns are not part of the input.
func BuildFeatures(records []weather.FlattenedWeather) *Features {
	f := &Features{
		Columns: append([]string(nil), FeatureColumns...),
		Data:    make([][]any, 0, len(records)),
	}
	for _, rec := range records {
		row := make([]any, 0, len(f.Columns))
		row = append(row, rec.Lat, rec.Lon, rec.Date.UTC().Format(time.RFC3339))
		for _, c := range weather.Columns {
			v, ok := rec.Get(c)
			switch {
			case !ok:
				row = append(row, nil)
			case v.IsTime():
				ts, _ := v.Time()
				row = append(row, ts.UTC().Format(time.RFC3339))
			default:
				n, _ := v.Float()
				row = append(row, n)
			}
		}
		f.Data = append(f.Data, row)
	}
	return f
}
