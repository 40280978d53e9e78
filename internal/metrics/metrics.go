package metrics

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screen_usage_provider_requests_total",
			Help: "Total usage provider requests by outcome",
		},
		[]string{"provider", "outcome"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screen_usage_provider_request_duration_seconds",
			Help:    "Usage provider request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	ApplicationsReported = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "screen_usage_applications_reported",
			Help: "Applications with usage data in the last successful report",
		},
		[]string{"provider"},
	)

	StaleResponsesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screen_usage_stale_responses_dropped_total",
			Help: "Usage responses discarded because a newer request was issued",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ApplicationsReported,
		StaleResponsesDropped,
	)
}

// Server exposes /metrics and /health.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the listener synchronously so address errors surface to the caller.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
