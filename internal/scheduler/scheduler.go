package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Jobs is the ingestion work run on a schedule.
type Jobs interface {
	SyncWeather(ctx context.Context, date time.Time) (int, error)
	SyncEnergy(ctx context.Context, start, end time.Time) (int, error)
}

// ModelReloader swaps in the current production model.
type ModelReloader interface {
	LoadModel(ctx context.Context) error
}

// Config holds the cron specs of each job. An empty spec disables the job.
type Config struct {
	WeatherSpec    string
	EnergySpec     string
	ModelSpec      string
	EnergyLookback time.Duration
	JobTimeout     time.Duration
	Timezone       *time.Location
}

// DefaultConfig pulls the forecast hourly, the inverter archive every 15
// minutes and reloads the model nightly.
func DefaultConfig() Config {
	return Config{
		WeatherSpec:    "5 * * * *",
		EnergySpec:     "*/15 * * * *",
		ModelSpec:      "30 2 * * *",
		EnergyLookback: 24 * time.Hour,
		JobTimeout:     2 * time.Minute,
		Timezone:       time.UTC,
	}
}

type Scheduler struct {
	jobs     Jobs
	reloader ModelReloader
	cfg      Config
	logger   logrus.FieldLogger
	cron     *cron.Cron
	now      func() time.Time

	// onEnergy runs after an energy sync that stored rows.
	onEnergy func()
}

func NewScheduler(jobs Jobs, reloader ModelReloader, cfg Config, logger logrus.FieldLogger) *Scheduler {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.EnergyLookback <= 0 {
		cfg.EnergyLookback = 24 * time.Hour
	}
	return &Scheduler{
		jobs:     jobs,
		reloader: reloader,
		cfg:      cfg,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(cfg.Timezone)),
		now:      time.Now,
	}
}

// OnEnergySynced registers fn to run after new energy rows were stored.
func (s *Scheduler) OnEnergySynced(fn func()) {
	s.onEnergy = fn
}

// Start the scheduler
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		run  func()
	}{
		{s.cfg.WeatherSpec, s.syncWeather},
		{s.cfg.EnergySpec, s.syncEnergy},
	}
	if s.reloader != nil {
		jobs = append(jobs, struct {
			spec string
			run  func()
		}{s.cfg.ModelSpec, s.reloadModel})
	}

	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// syncWeather stores the forecast of today and tomorrow.
func (s *Scheduler) syncWeather() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	y, m, d := s.now().In(s.cfg.Timezone).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Timezone)
	for _, date := range []time.Time{today, today.AddDate(0, 0, 1)} {
		n, err := s.jobs.SyncWeather(ctx, date)
		if err != nil {
			s.logger.WithError(err).WithField("date", date.Format("2006-01-02")).Error("Failed to sync weather")
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"date":    date.Format("2006-01-02"),
			"records": n,
		}).Debug("Synced weather")
	}
}

// syncEnergy stores the inverter history of the lookback window.
func (s *Scheduler) syncEnergy() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	end := s.now()
	start := end.Add(-s.cfg.EnergyLookback)

	n, err := s.jobs.SyncEnergy(ctx, start, end)
	if err != nil {
		s.logger.WithError(err).Error("Failed to sync energy")
		return
	}
	if n > 0 && s.onEnergy != nil {
		s.onEnergy()
	}
	s.logger.WithField("rows", n).Debug("Synced energy")
}

func (s *Scheduler) reloadModel() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if err := s.reloader.LoadModel(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to reload model")
	}
}

// Stop the scheduler and wait for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
