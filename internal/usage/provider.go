package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/olliecrow/screen_usage_monitor/internal/metrics"
)

// ReportProvider answers RequestUsage by loading a fresh activity report and
// copying the total of every application that has data.
type ReportProvider struct {
	name   string
	open   ReportOpener
	closer func() error
}

func NewReportProvider(name string, open ReportOpener, closer func() error) *ReportProvider {
	return &ReportProvider{name: name, open: open, closer: closer}
}

func (p *ReportProvider) Name() string {
	return p.name
}

func (p *ReportProvider) RequestUsage(ctx context.Context) (UsageMap, error) {
	if p.open == nil {
		return nil, newLoadError(fmt.Errorf("provider %q has no report source", p.name))
	}
	report := p.open()
	if report == nil {
		return nil, newLoadError(fmt.Errorf("provider %q returned no report", p.name))
	}
	if err := report.Load(ctx); err != nil {
		return nil, newLoadError(err)
	}

	out := UsageMap{}
	for _, app := range report.AllApplications() {
		data, ok := report.ApplicationData(app)
		if !ok {
			continue
		}
		total := data.TotalUsage
		if total < 0 {
			total = 0
		}
		out[app] = total
	}
	return out, nil
}

func (p *ReportProvider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

type timeoutProvider struct {
	Provider
	timeout time.Duration
}

// WithTimeout bounds every RequestUsage call with its own deadline.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: timeout}
}

func (p *timeoutProvider) RequestUsage(ctx context.Context) (UsageMap, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.RequestUsage(ctx)
}

type instrumentedProvider struct {
	Provider
	logger zerolog.Logger
}

// Instrument records request counts, latency and diagnostics for p.
func Instrument(p Provider, logger zerolog.Logger) Provider {
	return &instrumentedProvider{
		Provider: p,
		logger:   logger.With().Str("component", "usage-provider").Str("provider", p.Name()).Logger(),
	}
}

func (p *instrumentedProvider) RequestUsage(ctx context.Context) (UsageMap, error) {
	start := time.Now()
	out, err := p.Provider.RequestUsage(ctx)
	elapsed := time.Since(start)
	metrics.ProviderRequestDuration.WithLabelValues(p.Name()).Observe(elapsed.Seconds())

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(p.Name(), "failed").Inc()
		p.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Usage request failed")
		return nil, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues(p.Name(), "ok").Inc()
	metrics.ApplicationsReported.WithLabelValues(p.Name()).Set(float64(len(out)))
	p.logger.Debug().
		Int("applications", len(out)).
		Int64("total_ms", int64(out.Total())).
		Dur("elapsed", elapsed).
		Msg("Usage request resolved")
	return out, nil
}
