package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/database"
	"github.com/tejusbharadwaj/pvforecast/internal/inverter"
	"github.com/tejusbharadwaj/pvforecast/internal/series"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

// WeatherSource returns the forecast for one calendar day.
type WeatherSource interface {
	GetWeatherForDate(ctx context.Context, date time.Time, params []string, locations []weather.Location) (*weather.Response, error)
}

// EnergySource returns inverter channels for a range of days.
type EnergySource interface {
	GetEnergy(ctx context.Context, start, end time.Time, channels []string) (*series.Table, error)
}

// FetcherConfig selects what the fetcher pulls from the upstreams.
type FetcherConfig struct {
	Parameters    []string
	Locations     []weather.Location
	Channels      []string
	BootstrapDays int
}

// SeriesFetcher copies weather forecasts and inverter energy history into
// the repository.
type SeriesFetcher struct {
	weather WeatherSource
	energy  EnergySource
	repo    database.Repository
	cfg     FetcherConfig
	now     func() time.Time
	logger  logrus.FieldLogger
}

func NewSeriesFetcher(cfg FetcherConfig, weatherSrc WeatherSource, energySrc EnergySource, repo database.Repository, logger logrus.FieldLogger) *SeriesFetcher {
	if len(cfg.Parameters) == 0 {
		cfg.Parameters = weather.DefaultParameters
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = inverter.DefaultChannels
	}
	return &SeriesFetcher{
		weather: weatherSrc,
		energy:  energySrc,
		repo:    repo,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// SyncWeather stores the forecast for the calendar day of date and returns
// the number of records written.
func (f *SeriesFetcher) SyncWeather(ctx context.Context, date time.Time) (int, error) {
	if len(f.cfg.Locations) == 0 {
		return 0, errors.New("no weather locations configured")
	}

	resp, err := f.weather.GetWeatherForDate(ctx, date, f.cfg.Parameters, f.cfg.Locations)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch weather: %w", err)
	}

	records := weather.Flatten(resp)
	if err := f.repo.UpsertWeather(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// SyncEnergy stores the inverter history between start and end and returns
// the number of rows written. A range without data is not an error.
func (f *SeriesFetcher) SyncEnergy(ctx context.Context, start, end time.Time) (int, error) {
	table, err := f.energy.GetEnergy(ctx, start, end, f.cfg.Channels)
	if errors.Is(err, series.ErrNoData) {
		f.logger.WithFields(logrus.Fields{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		}).Info("No energy data in range")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch energy: %w", err)
	}

	records := inverter.EnergyRecords(table)
	if err := f.repo.UpsertEnergy(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// BootstrapHistoricalData loads the configured number of days of energy
// history ending today. Nothing is loaded when BootstrapDays is zero.
func (f *SeriesFetcher) BootstrapHistoricalData(ctx context.Context) error {
	if f.cfg.BootstrapDays <= 0 {
		return nil
	}
	end := f.now()
	start := end.AddDate(0, 0, -f.cfg.BootstrapDays)

	n, err := f.SyncEnergy(ctx, start, end)
	if err != nil {
		return err
	}
	f.logger.WithFields(logrus.Fields{
		"days": f.cfg.BootstrapDays,
		"rows": n,
	}).Info("Bootstrapped energy history")
	return nil
}
