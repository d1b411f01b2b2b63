package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejusbharadwaj/pvforecast/internal/cache"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

const forecastPayload = `{
  "version": "3.0",
  "user": "pv",
  "dateGenerated": "2025-06-28T21:12:04Z",
  "status": "OK",
  "data": [
    {"parameter": "t_2m:C", "coordinates": [
      {"lat": 47.1, "lon": 8.2, "dates": [{"date": "2025-06-28T22:00:00Z", "value": 20.1}]}
    ]}
  ]
}`

func TestDateRange(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{
			name: "winter",
			date: time.Date(2025, 12, 12, 15, 30, 0, 0, time.UTC),
			want: "2025-12-12T00:00:00+01:00--2025-12-13T00:00:00+01:00:PT1H",
		},
		{
			name: "summer",
			date: time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC),
			want: "2025-06-28T00:00:00+02:00--2025-06-29T00:00:00+02:00:PT1H",
		},
		{
			name: "dst change",
			date: time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC),
			want: "2025-03-30T00:00:00+01:00--2025-03-31T00:00:00+02:00:PT1H",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DateRange(tt.date, zurich))
		})
	}
}

func newTestWeatherClient(t *testing.T, baseURL string, store cache.Store) *WeatherClient {
	t.Helper()
	c, err := NewWeatherClient(MeteomaticsConfig{
		BaseURL:  baseURL,
		Username: "user",
		Password: "secret",
		Timezone: "Europe/Zurich",
		Timeout:  time.Second,
	}, store, logrus.New())
	require.NoError(t, err)
	return c
}

func TestWeatherClient_GetWeatherForDate(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(forecastPayload))
	}))
	defer server.Close()

	client := newTestWeatherClient(t, server.URL, nil)
	resp, err := client.GetWeatherForDate(context.Background(),
		time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC),
		[]string{"t_2m:C", "uv:idx"},
		[]weather.Location{{Lat: 47.1, Lon: 8.2}, {Lat: 46, Lon: 7.5}},
	)
	require.NoError(t, err)

	assert.Equal(t,
		"/2025-06-28T00:00:00+02:00--2025-06-29T00:00:00+02:00:PT1H/t_2m:C,uv:idx/47.1,8.2+46,7.5/json",
		gotPath)
	assert.Equal(t, "OK", resp.Status)
	require.Len(t, resp.Data, 1)
}

func TestWeatherClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: "nope", wantErr: ErrStatus},
		{name: "malformed", status: http.StatusOK, body: `{"status":"OK"}`, wantErr: weather.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestWeatherClient(t, server.URL, nil)
			_, err := client.GetWeatherForDate(context.Background(), time.Now(),
				[]string{"t_2m:C"}, []weather.Location{{Lat: 1, Lon: 2}})
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestWeatherClient_UnsupportedFormat(t *testing.T) {
	client := newTestWeatherClient(t, "http://127.0.0.1:1", nil)

	_, err := client.Query(context.Background(), "x", []string{"t_2m:C"}, []weather.Location{{Lat: 1, Lon: 2}}, "csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWeatherClient_UsesCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(forecastPayload))
	}))
	defer server.Close()

	store, err := cache.NewMemoryStore(8, time.Hour)
	require.NoError(t, err)
	client := newTestWeatherClient(t, server.URL, store)

	date := time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC)
	locs := []weather.Location{{Lat: 47.1, Lon: 8.2}}

	for i := 0; i < 3; i++ {
		resp, err := client.GetWeatherForDate(context.Background(), date, []string{"t_2m:C"}, locs)
		require.NoError(t, err)
		assert.Len(t, resp.Data, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	// a different day is a different key
	_, err = client.GetWeatherForDate(context.Background(), date.AddDate(0, 0, 1), []string{"t_2m:C"}, locs)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestWeatherClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forecastPayload))
	}))
	defer server.Close()

	client, err := NewWeatherClient(MeteomaticsConfig{BaseURL: server.URL}, nil, logrus.New(), WithRateLimit(0.001, 1))
	require.NoError(t, err)
	locs := []weather.Location{{Lat: 1, Lon: 2}}

	_, err = client.GetWeatherForDate(context.Background(), time.Now(), []string{"t_2m:C"}, locs)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetWeatherForDate(ctx, time.Now().AddDate(0, 0, 1), []string{"t_2m:C"}, locs)
	assert.ErrorIs(t, err, ErrRequest)
}

func TestNewWeatherClient_InvalidTimezone(t *testing.T) {
	_, err := NewWeatherClient(MeteomaticsConfig{Timezone: "Mars/Olympus"}, nil, logrus.New())
	assert.Error(t, err)
}
