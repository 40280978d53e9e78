package usage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type closeRecorder struct {
	name     string
	closed   int
	closeErr error
}

func (c *closeRecorder) Name() string { return c.name }

func (c *closeRecorder) RequestUsage(context.Context) (UsageMap, error) {
	return UsageMap{}, nil
}

func (c *closeRecorder) Close() error {
	c.closed++
	return c.closeErr
}

func TestRegistryLookupMissIsUnavailable(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("redis")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Name != "redis" {
		t.Fatalf("expected UnavailableError naming redis, got %#v", err)
	}
}

func TestRegistryBindNormalizesNames(t *testing.T) {
	r := NewRegistry()
	p := &closeRecorder{name: " File "}
	if err := r.Bind(p); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := r.Lookup("FILE")
	if err != nil || got != p {
		t.Fatalf("expected normalized lookup to find provider, got %v, %v", got, err)
	}
	if !reflect.DeepEqual(r.Names(), []string{"file"}) {
		t.Fatalf("unexpected names %v", r.Names())
	}
}

func TestRegistryBindRejectsInvalidProviders(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind(nil); err == nil {
		t.Fatalf("expected error binding nil provider")
	}
	if err := r.Bind(&closeRecorder{name: "  "}); err == nil {
		t.Fatalf("expected error binding unnamed provider")
	}
}

func TestRegistryRebindClosesPrevious(t *testing.T) {
	r := NewRegistry()
	first := &closeRecorder{name: "file"}
	second := &closeRecorder{name: "file"}
	_ = r.Bind(first)
	if err := r.Bind(second); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if first.closed != 1 {
		t.Fatalf("expected replaced provider closed once, got %d", first.closed)
	}
	if got, _ := r.Lookup("file"); got != second {
		t.Fatalf("expected replacement to be bound")
	}
}

func TestBindingResolvesAtCallTime(t *testing.T) {
	r := NewRegistry()
	b := r.Binding("redis")
	if _, err := b.Provider(); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected unavailable before bind, got %v", err)
	}

	p := &closeRecorder{name: "redis"}
	_ = r.Bind(p)
	got, err := b.Provider()
	if err != nil || got != p {
		t.Fatalf("expected late-bound provider, got %v, %v", got, err)
	}

	if err := r.Unbind("redis"); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if p.closed != 1 {
		t.Fatalf("expected unbound provider closed")
	}
	if _, err := b.Provider(); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected unavailable after unbind, got %v", err)
	}
	if err := r.Unbind("redis"); err != nil {
		t.Fatalf("expected second unbind to be a no-op, got %v", err)
	}
}

func TestRegistryCloseClosesAllAndReportsFirstError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	a := &closeRecorder{name: "a", closeErr: boom}
	b := &closeRecorder{name: "b", closeErr: errors.New("later")}
	_ = r.Bind(a)
	_ = r.Bind(b)

	if err := r.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Fatalf("expected every provider closed, got a=%d b=%d", a.closed, b.closed)
	}
	if len(r.Names()) != 0 {
		t.Fatalf("expected registry emptied, got %v", r.Names())
	}
}

func TestStaticBinding(t *testing.T) {
	if _, err := (StaticBinding{}).Provider(); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected unavailable for empty binding, got %v", err)
	}
	p := &closeRecorder{name: "x"}
	got, err := StaticBinding{P: p}.Provider()
	if err != nil || got != p {
		t.Fatalf("expected static provider, got %v, %v", got, err)
	}
}
