package weather

import "time"

// FlattenedWeather is one row of a flattened response: every field reported
// for a single location and timestamp. Fields that were not reported are
// absent from Fields.
type FlattenedWeather struct {
	Lat    float64
	Lon    float64
	Date   time.Time
	Fields map[string]Value
}

// Get returns the field value.
func (r FlattenedWeather) Get(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Float returns a numeric field. ok is false if the field is absent or holds
// a timestamp.
func (r FlattenedWeather) Float(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Time returns a timestamp field. ok is false if the field is absent or holds
// a number.
func (r FlattenedWeather) Time(name string) (time.Time, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return time.Time{}, false
	}
	return v.Time()
}

type flattenKey struct {
	lat  float64
	lon  float64
	date int64
}

// Flatten merges all parameters of resp into one record per (lat, lon, date).
//
// Parameters, coordinates and dates are visited in response order and records
// are returned in the order their key was first seen. Each value is parsed and
// normalized; if two raw parameters map to the same field for one key, the
// later one wins.
func Flatten(resp *Response) []FlattenedWeather {
	if resp == nil {
		return nil
	}

	index := make(map[flattenKey]int)
	var records []FlattenedWeather

	for _, param := range resp.Data {
		name, unit := ParseParameter(param.Parameter)
		for _, coord := range param.Coordinates {
			for _, dv := range coord.Dates {
				key := flattenKey{lat: coord.Lat, lon: coord.Lon, date: dv.Date.UnixNano()}
				i, ok := index[key]
				if !ok {
					i = len(records)
					index[key] = i
					records = append(records, FlattenedWeather{
						Lat:    coord.Lat,
						Lon:    coord.Lon,
						Date:   dv.Date,
						Fields: make(map[string]Value),
					})
				}
				records[i].Fields[name] = Normalize(name, dv.Value, unit)
			}
		}
	}

	return records
}
