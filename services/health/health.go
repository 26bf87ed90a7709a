package health

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each reachability check
const DefaultTimeout = 5 * time.Second

// SystemStatus snapshot, recomputed per request
type SystemStatus struct {
	BackendReachable   bool      `json:"backend_reachable"`
	AnalyticsReachable bool      `json:"analytics_reachable"`
	StartedAt          time.Time `json:"probe_started_at"`
}

// Config for a Prober
type Config struct {
	BackendURL   string
	AnalyticsURL string
	AnalyticsKey string
	Timeout      time.Duration
}

// Prober checks the workflow engine and the analytics store
type Prober struct {
	logger *zap.Logger
	client *http.Client
	cfg    Config
}

// New prober
func New(logger *zap.Logger, client *http.Client, cfg Config) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.AnalyticsURL = strings.TrimRight(cfg.AnalyticsURL, "/")
	return &Prober{logger: logger, client: client, cfg: cfg}
}

// Probe runs both checks concurrently and waits for both. A failing or hanging
// check only affects its own field.
func (p *Prober) Probe(ctx context.Context) SystemStatus {
	status := SystemStatus{StartedAt: time.Now()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		status.BackendReachable = p.check(ctx, "backend", p.backendRequest)
	}()
	go func() {
		defer wg.Done()
		status.AnalyticsReachable = p.check(ctx, "analytics", p.analyticsRequest)
	}()
	wg.Wait()

	return status
}

func (p *Prober) backendRequest(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BackendURL, nil)
}

func (p *Prober) analyticsRequest(ctx context.Context) (*http.Request, error) {
	if p.cfg.AnalyticsURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.AnalyticsURL+"/rest/v1/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", p.cfg.AnalyticsKey)
	return req, nil
}

// check reports whether the request built by newRequest got a 2xx answer in time.
// A nil request means the target is not configured.
func (p *Prober) check(ctx context.Context, name string, newRequest func(context.Context) (*http.Request, error)) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	l := p.logger.With(zap.String("check", name))

	req, err := newRequest(ctx)
	if err != nil {
		l.Warn("invalid health check request", zap.Error(err))
		return false
	}
	if req == nil {
		l.Debug("health check target not configured")
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		l.Warn("health check failed", zap.Error(err))
		return false
	}
	resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
