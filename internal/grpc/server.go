package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/pvforecast/internal/api"
	"github.com/tejusbharadwaj/pvforecast/internal/events"
	middleware "github.com/tejusbharadwaj/pvforecast/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/pvforecast/internal/model"
	"github.com/tejusbharadwaj/pvforecast/internal/models"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int     // Size of the LRU cache
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		RateLimit:      5.0,
		RateLimitBurst: 10,
	}
}

// DataRepository defines the storage the service reads from and writes to.
type DataRepository interface {
	Query(ctx context.Context, start, end time.Time, window string, aggregation string) ([]models.TimeSeriesData, error)
	SavePredictions(ctx context.Context, resp models.PredictionResponse) error
}

// WeatherSource returns the hourly forecast of one local day.
type WeatherSource interface {
	GetWeatherForDate(ctx context.Context, date time.Time, params []string, locations []weather.Location) (*weather.Response, error)
}

// Predictor runs the prediction model.
type Predictor interface {
	Run(ctx context.Context, resp *weather.Response) (*models.PredictionResponse, error)
	LoadModel(ctx context.Context) error
	ModelID() string
}

// ServiceConfig holds the defaults applied to forecast requests.
type ServiceConfig struct {
	Parameters []string
	Locations  []weather.Location
	Timezone   *time.Location
}

// PVService implements the forecast service. It is shared by the gRPC and
// HTTP shells.
type PVService struct {
	weather    WeatherSource
	predictor  Predictor
	repository DataRepository
	publisher  events.Publisher
	validator  *RequestValidator
	cfg        ServiceConfig
	now        func() time.Time
	logger     logrus.FieldLogger

	mu           sync.Mutex
	onInvalidate []func()
}

var _ PVForecastServer = (*PVService)(nil)

// NewPVService creates a new service instance. A nil publisher disables
// prediction events.
func NewPVService(
	src WeatherSource,
	predictor Predictor,
	repo DataRepository,
	publisher events.Publisher,
	cfg ServiceConfig,
	logger logrus.FieldLogger,
) *PVService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if len(cfg.Parameters) == 0 {
		cfg.Parameters = weather.DefaultParameters
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &PVService{
		weather:    src,
		predictor:  predictor,
		repository: repo,
		publisher:  publisher,
		validator:  NewRequestValidator(),
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// OnInvalidate registers fn to run whenever served data changes: after a
// successful model reload and whenever Invalidate is called.
func (s *PVService) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate runs the registered invalidation hooks. Ingestion calls it after
// new energy rows are stored.
func (s *PVService) Invalidate() {
	s.mu.Lock()
	hooks := append([]func(){}, s.onInvalidate...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Predict fetches the forecast of the requested day, runs the model on it,
// stores the predictions and publishes them.
func (s *PVService) Predict(ctx context.Context, req *PredictRequest) (*models.PredictionResponse, error) {
	date, err := s.validator.ParseDate(req.Date, s.now(), s.cfg.Timezone)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	locations := req.Locations
	if len(locations) == 0 {
		locations = s.cfg.Locations
	}
	if err := s.validator.ValidateLocations(locations); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	forecast, err := s.weather.GetWeatherForDate(ctx, date, s.cfg.Parameters, locations)
	if err != nil {
		return nil, toStatus("weather fetch failed", err)
	}

	resp, err := s.predictor.Run(ctx, forecast)
	if err != nil {
		return nil, toStatus("prediction failed", err)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"request_id":  middleware.RequestIDFromContext(ctx),
		"model_id":    resp.ModelID,
		"predictions": len(resp.Predictions),
	})
	if len(resp.Predictions) > 0 {
		if err := s.repository.SavePredictions(ctx, *resp); err != nil {
			logger.WithError(err).Warn("Failed to store predictions")
		}
		if err := s.publisher.PublishPredictions(ctx, resp); err != nil {
			logger.WithError(err).Warn("Failed to publish predictions")
		}
	}
	logger.Info("Forecast completed")

	return resp, nil
}

// QueryEnergy aggregates stored energy production.
func (s *PVService) QueryEnergy(ctx context.Context, req *EnergyRequest) (*EnergyResponse, error) {
	if err := s.validator.Validate(req.Start, req.End, req.Window, req.Aggregation); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	data, err := s.repository.Query(ctx, req.Start, req.End, req.Window, req.Aggregation)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}

	out := &EnergyResponse{Data: make([]DataPoint, 0, len(data))}
	for _, dp := range data {
		out.Data = append(out.Data, DataPoint{Time: dp.Time, Value: dp.Value})
	}
	return out, nil
}

// ReloadModel swaps in the model currently tagged in the registry.
func (s *PVService) ReloadModel(ctx context.Context, _ *ReloadModelRequest) (*ReloadModelResponse, error) {
	if err := s.predictor.LoadModel(ctx); err != nil {
		return nil, toStatus("model reload failed", err)
	}

	s.Invalidate()

	return &ReloadModelResponse{ModelID: s.predictor.ModelID()}, nil
}

// toStatus maps service errors to gRPC status codes.
func toStatus(msg string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", msg, err)
	case errors.Is(err, model.ErrModelUnavailable),
		errors.Is(err, api.ErrRequest),
		errors.Is(err, api.ErrStatus):
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

// ConfigureGRPCServer registers the service without the middleware (for
// development and debug only)
func ConfigureGRPCServer(svc PVForecastServer, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	RegisterPVForecastServer(srv, svc)
	return srv
}

// SetupServer initializes and configures the gRPC server with all middleware
// and the health service. Interceptor metrics are registered with reg.
func SetupServer(svc *PVService, config ServerConfig, logger logrus.FieldLogger, reg prometheus.Registerer) (*grpc.Server, *HealthChecker, error) {
	cache, err := middleware.NewCache(config.CacheSize, MethodQueryEnergy)
	if err != nil {
		return nil, nil, err
	}
	svc.OnInvalidate(cache.Purge)

	metrics, err := middleware.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
				middleware.NewLoggingInterceptor(logger),
				metrics.Interceptor,
				cache.Interceptor, // Cache last to avoid caching errors
			),
		),
	)

	RegisterPVForecastServer(server, svc)

	health := NewHealthChecker()
	health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, health)

	return server, health, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
