package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/inverter"
	"github.com/tejusbharadwaj/pvforecast/internal/series"
	"github.com/tidwall/gjson"
)

// FroniusConfig locates the inverter on the local network.
type FroniusConfig struct {
	Address      string
	MaxQueryDays int
	Timeout      time.Duration
}

// InverterClient reads the archive of a Fronius inverter through its local
// solar API.
type InverterClient struct {
	baseURL      string
	maxQueryDays int
	upstream     *upstream
	logger       logrus.FieldLogger
}

// NewInverterClient returns a client for the inverter at cfg.Address, which
// may be a bare host ("192.168.1.20") or a URL.
func NewInverterClient(cfg FroniusConfig, logger logrus.FieldLogger, opts ...ClientOption) (*InverterClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("inverter address is required")
	}
	if cfg.MaxQueryDays <= 0 {
		cfg.MaxQueryDays = series.MaxQueryDays
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := cfg.Address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	o := buildOptions(cfg.Timeout, opts)
	return &InverterClient{
		baseURL:      strings.TrimRight(base, "/"),
		maxQueryDays: cfg.MaxQueryDays,
		upstream: &upstream{
			source:     "fronius",
			httpClient: o.httpClient,
			limiter:    o.limiter,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

func archiveDate(t time.Time) string {
	return fmt.Sprintf("%d.%d.%d", t.Day(), int(t.Month()), t.Year())
}

// ArchiveURL builds the GetArchiveData request for the given days and
// channels.
func (c *InverterClient) ArchiveURL(start, end time.Time, channels []string) string {
	q := url.Values{}
	q.Set("Scope", "System")
	q.Set("StartDate", archiveDate(start))
	q.Set("EndDate", archiveDate(end))
	for _, ch := range channels {
		q.Add("Channel", ch)
	}
	return c.baseURL + "/solar_api/v1/GetArchiveData.cgi?" + q.Encode()
}

// QueryArchive fetches channels for a single range. It returns a nil table
// when the inverter has no data for the range.
func (c *InverterClient) QueryArchive(ctx context.Context, start, end time.Time, channels []string) (*series.Table, error) {
	if len(channels) == 0 {
		return nil, inverter.ErrNoChannels
	}
	body, err := c.upstream.get(ctx, c.ArchiveURL(start, end, channels), nil)
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "Body.Data")
	if !data.Exists() {
		return nil, fmt.Errorf("%w: response has no Body.Data", inverter.ErrMalformedArchive)
	}
	if data.Type == gjson.Null || (data.IsObject() && len(data.Map()) == 0) {
		return nil, nil
	}

	return inverter.ExtractSeries([]byte(data.Raw), channels)
}

// GetEnergy fetches channels for an arbitrarily long range, splitting it
// into windows the inverter accepts.
func (c *InverterClient) GetEnergy(ctx context.Context, start, end time.Time, channels []string) (*series.Table, error) {
	if len(channels) == 0 {
		return nil, inverter.ErrNoChannels
	}
	fetch := func(ctx context.Context, ws, we time.Time) (*series.Table, error) {
		return c.QueryArchive(ctx, ws, we, channels)
	}
	return series.NewBatchFetcher(c.maxQueryDays, c.logger).Fetch(ctx, start, end, fetch)
}
