package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/pgexporter/pgexporter/internal/config"
)

const defaultProbeTimeout = 10 * time.Second

// ProbeResult summarizes one endpoint's exposition.
type ProbeResult struct {
	Endpoint config.Endpoint
	ProbedAt time.Time

	// Families is the number of distinct metric families exposed.
	Families int

	// Samples is the total number of samples across all families.
	Samples int

	// Err is non-nil if the probe failed (connectivity, status, parse).
	Err error
}

// NewClient returns the HTTP client used for endpoint probes.
func NewClient() *http.Client {
	return &http.Client{Timeout: defaultProbeTimeout}
}

// Probe fetches and parses one bridge endpoint. A failure is reported in
// the result rather than as an error, so a sweep over all endpoints can
// collect every outcome.
func Probe(ctx context.Context, client *http.Client, ep config.Endpoint) *ProbeResult {
	res := &ProbeResult{Endpoint: ep, ProbedAt: time.Now().UTC()}

	url := fmt.Sprintf("http://%s:%d/metrics", ep.Host, ep.Port)
	mfs, err := fetchMetrics(ctx, client, url)
	if err != nil {
		res.Err = err
		return res
	}

	res.Families = len(mfs)
	for _, mf := range mfs {
		res.Samples += len(mf.GetMetric())
	}
	return res
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric
// families. A partial result with a non-fatal parse warning is still
// returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}
