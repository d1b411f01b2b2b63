// Package model turns flattened weather forecasts into energy production
// predictions using a model served from an MLflow registry.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/metrics"
	"github.com/tejusbharadwaj/pvforecast/internal/models"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

var (
	// ErrModelUnavailable is returned when no model could be loaded.
	ErrModelUnavailable = errors.New("prediction model unavailable")

	// ErrPredictionMismatch is returned when the model does not return
	// exactly one prediction per input row.
	ErrPredictionMismatch = errors.New("prediction count does not match input rows")
)

// Model is a loaded, ready to serve model version.
type Model interface {
	Predict(ctx context.Context, features *Features) ([]float64, error)
	ID() string
}

// Loader resolves a registered model name and alias to a Model.
type Loader interface {
	Load(ctx context.Context, name, alias string) (Model, error)
}

// RunnerConfig names the model to serve and the PV system it predicts for.
type RunnerConfig struct {
	ModelName  string
	ModelAlias string
	PVID       string
}

const (
	DefaultModelName  = "pv_model"
	DefaultModelAlias = "production"
	DefaultPVID       = "1"
)

// Runner owns the model handle. Loading, replacing and running the model are
// mutually exclusive, so a reload never swaps the model mid-prediction.
type Runner struct {
	mu     sync.Mutex
	loader Loader
	model  Model
	cfg    RunnerConfig
	now    func() time.Time
	logger logrus.FieldLogger
}

// NewRunner returns a runner with no model loaded. The model is loaded on
// the first Run unless LoadModel is called before.
func NewRunner(loader Loader, cfg RunnerConfig, logger logrus.FieldLogger) *Runner {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.ModelAlias == "" {
		cfg.ModelAlias = DefaultModelAlias
	}
	if cfg.PVID == "" {
		cfg.PVID = DefaultPVID
	}
	return &Runner{
		loader: loader,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// LoadModel fetches the model currently behind the configured alias and
// replaces the held model. On failure the previous model is kept.
func (r *Runner) LoadModel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Runner) loadLocked(ctx context.Context) error {
	m, err := r.loader.Load(ctx, r.cfg.ModelName, r.cfg.ModelAlias)
	if err != nil {
		return fmt.Errorf("%w: %s@%s: %v", ErrModelUnavailable, r.cfg.ModelName, r.cfg.ModelAlias, err)
	}
	r.model = m
	r.logger.WithFields(logrus.Fields{
		"model":    r.cfg.ModelName,
		"alias":    r.cfg.ModelAlias,
		"model_id": m.ID(),
	}).Info("Loaded prediction model")
	return nil
}

// ModelID returns the id of the held model, or "" if none is loaded.
func (r *Runner) ModelID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model == nil {
		return ""
	}
	return r.model.ID()
}

// Run flattens resp, predicts energy production for every record and returns
// the predictions in record order.
func (r *Runner) Run(ctx context.Context, resp *weather.Response) (*models.PredictionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	out, err := r.runLocked(ctx, resp)
	if err != nil {
		metrics.ObservePrediction(metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObservePrediction(metrics.ResultSuccess, time.Since(start))
	return out, nil
}

func (r *Runner) runLocked(ctx context.Context, resp *weather.Response) (*models.PredictionResponse, error) {
	if r.model == nil {
		if err := r.loadLocked(ctx); err != nil {
			return nil, err
		}
	}

	records := weather.Flatten(resp)
	out := &models.PredictionResponse{
		PVID:           r.cfg.PVID,
		PredictionTime: r.now().UTC(),
		ModelID:        r.model.ID(),
		Predictions:    make([]models.Prediction, 0, len(records)),
	}
	if len(records) == 0 {
		return out, nil
	}

	values, err := r.model.Predict(ctx, BuildFeatures(records))
	if err != nil {
		return nil, fmt.Errorf("model %s failed to predict: %w", r.model.ID(), err)
	}
	if len(values) != len(records) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPredictionMismatch, len(values), len(records))
	}

	for i, rec := range records {
		out.Predictions = append(out.Predictions, models.Prediction{
			Date:           rec.Date,
			Lat:            rec.Lat,
			Lon:            rec.Lon,
			EnergyProduced: values[i],
		})
	}
	return out, nil
}
