package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerExposesHealthAndMetrics(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	ProviderRequestsTotal.WithLabelValues("test", "ok").Inc()
	StaleResponsesDropped.Inc()

	body := get(t, "http://"+s.Addr()+"/health")
	if body != "OK" {
		t.Fatalf("unexpected health body %q", body)
	}

	body = get(t, "http://"+s.Addr()+"/metrics")
	for _, want := range []string{
		`screen_usage_provider_requests_total{outcome="ok",provider="test"}`,
		"screen_usage_stale_responses_dropped_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}

func TestStartFailsOnBadAddress(t *testing.T) {
	s := NewServer("not-an-address", zerolog.Nop())
	if err := s.Start(); err == nil {
		_ = s.Stop()
		t.Fatalf("expected listen error")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
