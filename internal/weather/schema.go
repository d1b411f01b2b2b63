// Package weather parses forecast responses of the Meteomatics API and
// flattens them into one record per (latitude, longitude, timestamp).
//
// A response is nested by parameter, then coordinate, then timestamp:
//
//	data[].parameter                    "t_2m:C"
//	data[].coordinates[].{lat,lon}
//	data[].coordinates[].dates[].{date,value}
//
// ParseResponse validates that shape once at the boundary. Flatten assumes a
// validated Response and never fails.
package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformedResponse is returned when an upstream payload does not have the
// expected response shape.
var ErrMalformedResponse = errors.New("malformed weather response")

// Value is a single measurement. Most parameters report a number; a few
// (sunrise, sunset) report a timestamp instead.
type Value struct {
	num    float64
	ts     time.Time
	isTime bool
}

// Number returns a numeric Value.
func Number(v float64) Value {
	return Value{num: v}
}

// Timestamp returns a Value holding a point in time.
func Timestamp(t time.Time) Value {
	return Value{ts: t, isTime: true}
}

// IsTime reports whether the value is a timestamp.
func (v Value) IsTime() bool {
	return v.isTime
}

// Float returns the numeric value. ok is false for timestamps.
func (v Value) Float() (f float64, ok bool) {
	if v.isTime {
		return 0, false
	}
	return v.num, true
}

// Time returns the timestamp value. ok is false for numbers.
func (v Value) Time() (t time.Time, ok bool) {
	if !v.isTime {
		return time.Time{}, false
	}
	return v.ts, true
}

func (v Value) String() string {
	if v.isTime {
		return v.ts.Format(time.RFC3339)
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

// MarshalJSON encodes numbers as JSON numbers and timestamps as RFC 3339
// strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isTime {
		return json.Marshal(v.ts)
	}
	return json.Marshal(v.num)
}

// UnmarshalJSON accepts a JSON number or an RFC 3339 string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty value")
	}
	if data[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("value is neither a number nor a timestamp: %w", err)
		}
		*v = Timestamp(t)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("value is neither a number nor a timestamp: %w", err)
	}
	*v = Number(f)
	return nil
}

// DateValue is a measurement at a point in time.
type DateValue struct {
	Date  time.Time `json:"date"`
	Value Value     `json:"value"`
}

// Coordinate holds the time series of one parameter at one location.
type Coordinate struct {
	Lat   float64     `json:"lat"`
	Lon   float64     `json:"lon"`
	Dates []DateValue `json:"dates"`
}

// DataParameter is one requested parameter, e.g. "t_2m:C", across all
// requested locations.
type DataParameter struct {
	Parameter   string       `json:"parameter"`
	Coordinates []Coordinate `json:"coordinates"`
}

// Response is the envelope returned by the weather API. It is not modified
// after parsing.
type Response struct {
	Version       string          `json:"version"`
	User          string          `json:"user"`
	DateGenerated time.Time       `json:"dateGenerated"`
	Status        string          `json:"status"`
	Data          []DataParameter `json:"data"`
}

// Location is a point for which weather is requested.
type Location struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lon float64 `json:"lon" mapstructure:"lon"`
}

type rawResponse struct {
	Version       *string         `json:"version"`
	User          *string         `json:"user"`
	DateGenerated *time.Time      `json:"dateGenerated"`
	Status        *string         `json:"status"`
	Data          *[]rawParameter `json:"data"`
}

type rawParameter struct {
	Parameter   *string          `json:"parameter"`
	Coordinates *[]rawCoordinate `json:"coordinates"`
}

type rawCoordinate struct {
	Lat   *float64        `json:"lat"`
	Lon   *float64        `json:"lon"`
	Dates *[]rawDateValue `json:"dates"`
}

type rawDateValue struct {
	Date  *time.Time `json:"date"`
	Value *Value     `json:"value"`
}

// ParseResponse decodes and validates a JSON weather response. Every field of
// the envelope, every parameter, coordinate and date/value pair must be
// present; violations are reported as ErrMalformedResponse.
func ParseResponse(data []byte) (*Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch {
	case raw.Version == nil:
		return nil, missing("version")
	case raw.User == nil:
		return nil, missing("user")
	case raw.DateGenerated == nil:
		return nil, missing("dateGenerated")
	case raw.Status == nil:
		return nil, missing("status")
	case raw.Data == nil:
		return nil, missing("data")
	}

	resp := &Response{
		Version:       *raw.Version,
		User:          *raw.User,
		DateGenerated: *raw.DateGenerated,
		Status:        *raw.Status,
		Data:          make([]DataParameter, 0, len(*raw.Data)),
	}

	for i, p := range *raw.Data {
		if p.Parameter == nil {
			return nil, missing(fmt.Sprintf("data[%d].parameter", i))
		}
		if p.Coordinates == nil {
			return nil, missing(fmt.Sprintf("data[%d].coordinates", i))
		}
		param := DataParameter{
			Parameter:   *p.Parameter,
			Coordinates: make([]Coordinate, 0, len(*p.Coordinates)),
		}
		for j, c := range *p.Coordinates {
			path := fmt.Sprintf("data[%d].coordinates[%d]", i, j)
			switch {
			case c.Lat == nil:
				return nil, missing(path + ".lat")
			case c.Lon == nil:
				return nil, missing(path + ".lon")
			case c.Dates == nil:
				return nil, missing(path + ".dates")
			}
			coord := Coordinate{
				Lat:   *c.Lat,
				Lon:   *c.Lon,
				Dates: make([]DateValue, 0, len(*c.Dates)),
			}
			for k, dv := range *c.Dates {
				switch {
				case dv.Date == nil:
					return nil, missing(fmt.Sprintf("%s.dates[%d].date", path, k))
				case dv.Value == nil:
					return nil, missing(fmt.Sprintf("%s.dates[%d].value", path, k))
				}
				coord.Dates = append(coord.Dates, DateValue{Date: *dv.Date, Value: *dv.Value})
			}
			param.Coordinates = append(param.Coordinates, coord)
		}
		resp.Data = append(resp.Data, param)
	}

	return resp, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedResponse, field)
}
