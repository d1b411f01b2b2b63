package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/cache"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

const (
	DefaultMeteomaticsURL = "https://api.meteomatics.com"
	DefaultTimezone       = "Europe/Zurich"

	isoOffsetLayout = "2006-01-02T15:04:05-07:00"
)

// ErrUnsupportedFormat is returned for output formats other than json.
var ErrUnsupportedFormat = errors.New("unsupported response format")

// MeteomaticsConfig holds the weather API endpoint and credentials.
type MeteomaticsConfig struct {
	BaseURL  string
	Username string
	Password string
	Timezone string
	Timeout  time.Duration
}

// WeatherClient queries hourly forecasts from the Meteomatics API.
type WeatherClient struct {
	baseURL  string
	username string
	password string
	location *time.Location
	upstream *upstream
	store    cache.Store
	logger   logrus.FieldLogger
}

// NewWeatherClient returns a client for cfg. Payloads are cached in store
// when it is non-nil.
func NewWeatherClient(cfg MeteomaticsConfig, store cache.Store, logger logrus.FieldLogger, opts ...ClientOption) (*WeatherClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultMeteomaticsURL
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	o := buildOptions(cfg.Timeout, opts)
	return &WeatherClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		location: loc,
		upstream: &upstream{
			source:     "meteomatics",
			httpClient: o.httpClient,
			limiter:    o.limiter,
			logger:     logger,
		},
		store:  store,
		logger: logger,
	}, nil
}

// Location returns the timezone forecasts are requested in.
func (c *WeatherClient) Location() *time.Location {
	return c.location
}

// DateRange formats the hourly range covering the calendar day of date in
// loc, e.g. "2025-12-12T00:00:00+01:00--2025-12-13T00:00:00+01:00:PT1H".
func DateRange(date time.Time, loc *time.Location) string {
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)
	return from.Format(isoOffsetLayout) + "--" + to.Format(isoOffsetLayout) + ":PT1H"
}

func formatLocations(locations []weather.Location) string {
	parts := make([]string, len(locations))
	for i, l := range locations {
		parts[i] = strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lon, 'f', -1, 64)
	}
	return strings.Join(parts, "+")
}

// QueryURL builds the request URL for a date range, parameters, locations
// and output format.
func (c *WeatherClient) QueryURL(dateRange string, params []string, locations []weather.Location, format string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		c.baseURL, dateRange, strings.Join(params, ","), formatLocations(locations), format)
}

// Query fetches the raw payload for dateRange. Only the json format is
// supported.
func (c *WeatherClient) Query(ctx context.Context, dateRange string, params []string, locations []weather.Location, format string) ([]byte, error) {
	if format != "json" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if len(params) == 0 || len(locations) == 0 {
		return nil, fmt.Errorf("%w: at least one parameter and location required", ErrRequest)
	}

	return c.upstream.get(ctx, c.QueryURL(dateRange, params, locations, format), func(req *http.Request) {
		req.SetBasicAuth(c.username, c.password)
	})
}

// GetWeatherForDate returns the hourly forecast for the calendar day of date
// in the client timezone.
//
// A cached payload is served when available. Cache failures are logged and
// never fail the request.
func (c *WeatherClient) GetWeatherForDate(ctx context.Context, date time.Time, params []string, locations []weather.Location) (*weather.Response, error) {
	dateRange := DateRange(date, c.location)
	key := cache.Key("weather", dateRange, strings.Join(params, ","), formatLocations(locations))

	if c.store != nil {
		payload, ok, err := c.store.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.WithError(err).Warn("Weather cache read failed")
		case ok:
			if resp, err := weather.ParseResponse(payload); err == nil {
				return resp, nil
			}
			c.logger.WithField("key", key).Warn("Discarding malformed cached weather payload")
		}
	}

	payload, err := c.Query(ctx, dateRange, params, locations, "json")
	if err != nil {
		return nil, err
	}

	resp, err := weather.ParseResponse(payload)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		if err := c.store.Set(ctx, key, payload); err != nil {
			c.logger.WithError(err).Warn("Weather cache write failed")
		}
	}
	return resp, nil
}
