// Package httpapi exposes the forecast service as JSON over HTTP next to the
// gRPC server, together with the health and Prometheus endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	server "github.com/tejusbharadwaj/pvforecast/internal/grpc"
	middleware "github.com/tejusbharadwaj/pvforecast/internal/grpc/middlewares"
)

const maxBodyBytes = 1 << 20

// HealthReporter reports the serving status of a service.
type HealthReporter interface {
	Status(service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, bool)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type handler struct {
	svc    server.PVForecastServer
	health HealthReporter
	logger logrus.FieldLogger
}

// NewRouter builds the HTTP routes. metricsPath defaults to /metrics.
func NewRouter(svc server.PVForecastServer, health HealthReporter, gatherer prometheus.Gatherer, metricsPath string, logger logrus.FieldLogger) http.Handler {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	h := &handler{svc: svc, health: health, logger: logger}

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/predictions", h.predict).Methods(http.MethodPost)
	api.HandleFunc("/energy", h.queryEnergy).Methods(http.MethodGet)
	api.HandleFunc("/model/reload", h.reloadModel).Methods(http.MethodPost)

	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	router.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(logger))
	return router
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	var req server.PredictRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if date := r.URL.Query().Get("date"); date != "" {
		req.Date = date
	}

	resp, err := h.svc.Predict(r.Context(), &req)
	if err != nil {
		h.sendStatusError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

func (h *handler) queryEnergy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := server.EnergyRequest{
		Window:      q.Get("window"),
		Aggregation: q.Get("aggregation"),
	}
	var err error
	if req.Start, err = parseTime(q.Get("start")); err != nil {
		sendError(w, http.StatusBadRequest, "invalid start", err.Error())
		return
	}
	if req.End, err = parseTime(q.Get("end")); err != nil {
		sendError(w, http.StatusBadRequest, "invalid end", err.Error())
		return
	}

	resp, err := h.svc.QueryEnergy(r.Context(), &req)
	if err != nil {
		h.sendStatusError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

func (h *handler) reloadModel(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.ReloadModel(r.Context(), &server.ReloadModelRequest{})
	if err != nil {
		h.sendStatusError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	st, ok := h.health.Status(server.ServiceName)
	if !ok || st != grpc_health_v1.HealthCheckResponse_SERVING {
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": st.String()})
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": st.String()})
}

// parseTime accepts RFC3339 timestamps. An empty value yields the zero time
// so the service reports the missing bound.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (h *handler) sendStatusError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code := httpStatus(st.Code())
	if code >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("HTTP request failed")
	}
	sendError(w, code, st.Code().String(), st.Message())
}

// httpStatus maps gRPC codes to HTTP status codes.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, errorMsg, details string) {
	sendJSON(w, status, ErrorResponse{Error: errorMsg, Message: details})
}

// requestIDMiddleware shares the request ID convention of the gRPC server.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(middleware.WithRequestID(r.Context(), id)))
	})
}

func loggingMiddleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.WithFields(logrus.Fields{
				"request_id": middleware.RequestIDFromContext(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rw.status,
				"duration":   time.Since(start).String(),
			}).Info("HTTP request")
		})
	}
}

// responseWriter records the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
