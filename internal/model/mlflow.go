package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RegistryLoader resolves model aliases against the MLflow model registry
// REST API and serves predictions from an MLflow scoring server.
type RegistryLoader struct {
	registryURL string
	servingURL  string
	httpClient  *http.Client
}

var _ Loader = (*RegistryLoader)(nil)

// NewRegistryLoader returns a loader for the registry at registryURL whose
// models are served at servingURL.
func NewRegistryLoader(registryURL, servingURL string, timeout time.Duration) *RegistryLoader {
	return &RegistryLoader{
		registryURL: strings.TrimRight(registryURL, "/"),
		servingURL:  strings.TrimRight(servingURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type aliasResponse struct {
	ModelVersion struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		RunID   string `json:"run_id"`
	} `json:"model_version"`
}

// Load looks up the version behind alias and returns a handle to it.
func (l *RegistryLoader) Load(ctx context.Context, name, alias string) (Model, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("alias", alias)
	endpoint := l.registryURL + "/api/2.0/mlflow/registered-models/alias?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("mlflow: failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mlflow: registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mlflow: registry returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var found aliasResponse
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, fmt.Errorf("mlflow: failed to decode registry response: %w", err)
	}
	if found.ModelVersion.Version == "" {
		return nil, fmt.Errorf("mlflow: alias %s of %s has no version", alias, name)
	}

	return &HTTPModel{
		id:         found.ModelVersion.Name + "/" + found.ModelVersion.Version,
		invokeURL:  l.servingURL + "/invocations",
		httpClient: l.httpClient,
	}, nil
}

// HTTPModel calls the /invocations endpoint of an MLflow scoring server.
type HTTPModel struct {
	id         string
	invokeURL  string
	httpClient *http.Client
}

var _ Model = (*HTTPModel)(nil)

func (m *HTTPModel) ID() string { return m.id }

type invocationRequest struct {
	DataframeSplit *Features `json:"dataframe_split"`
}

type invocationResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict sends features in dataframe_split orientation and returns one
// prediction per row.
func (m *HTTPModel) Predict(ctx context.Context, features *Features) ([]float64, error) {
	body, err := json.Marshal(invocationRequest{DataframeSplit: features})
	if err != nil {
		return nil, fmt.Errorf("mlflow: failed to marshal features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.invokeURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mlflow: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mlflow: invocation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mlflow: invocation returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out invocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mlflow: failed to decode predictions: %w", err)
	}
	return out.Predictions, nil
}
