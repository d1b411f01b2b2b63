package server

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

const (
	maxTimeRange = 2 * 365 * 24 * time.Hour

	// maxLocations bounds a single forecast request.
	maxLocations = 50

	dateLayout = "2006-01-02"
)

type RequestValidator struct {
	validWindows      map[string]bool
	validAggregations map[string]bool
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validWindows: map[string]bool{
			"1m": true,
			"5m": true,
			"1h": true,
			"1d": true,
		},
		validAggregations: map[string]bool{
			"MIN": true,
			"MAX": true,
			"AVG": true,
			"SUM": true,
		},
	}
}

// Validate checks if the energy query parameters are valid
func (v *RequestValidator) Validate(start, end time.Time, window, aggregation string) error {
	if start.IsZero() || end.IsZero() || start.Equal(time.Unix(0, 0)) || end.Equal(time.Unix(0, 0)) {
		return fmt.Errorf("missing timestamp")
	}

	if start.After(end) {
		return fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxTimeRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	if window == "" {
		return fmt.Errorf("invalid window: ")
	}
	if !v.validWindows[window] {
		return fmt.Errorf("invalid window: %s", window)
	}

	if aggregation == "" {
		return fmt.Errorf("invalid aggregation")
	}
	if !v.validAggregations[aggregation] {
		return fmt.Errorf("invalid aggregation: %s", aggregation)
	}

	return nil
}

// ParseDate parses a YYYY-MM-DD forecast date as local midnight in loc. An
// empty string yields today.
func (v *RequestValidator) ParseDate(date string, now time.Time, loc *time.Location) (time.Time, error) {
	if date == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %s", date)
	}
	return t, nil
}

// ValidateLocations checks coordinate ranges and the per-request limit.
func (v *RequestValidator) ValidateLocations(locations []weather.Location) error {
	if len(locations) == 0 {
		return fmt.Errorf("no locations")
	}
	if len(locations) > maxLocations {
		return fmt.Errorf("too many locations: %d > %d", len(locations), maxLocations)
	}
	for _, l := range locations {
		if l.Lat < -90 || l.Lat > 90 {
			return fmt.Errorf("invalid latitude: %v", l.Lat)
		}
		if l.Lon < -180 || l.Lon > 180 {
			return fmt.Errorf("invalid longitude: %v", l.Lon)
		}
	}
	return nil
}
