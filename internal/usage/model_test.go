package usage

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestDurationMillisConversion(t *testing.T) {
	if got := DurationMillis(1500).Duration(); got != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %s", got)
	}
	if got := DurationMillis(math.MaxInt64).Duration(); got != time.Duration(math.MaxInt64) {
		t.Fatalf("expected saturated duration, got %s", got)
	}
	if got := maxDurationMillis.Duration(); got <= 0 {
		t.Fatalf("largest representable total must stay positive, got %s", got)
	}
	if got := DurationMillis(math.MinInt64).Duration(); got != time.Duration(math.MinInt64) {
		t.Fatalf("expected saturated negative duration, got %s", got)
	}
}

func TestUsageMapTotalSaturates(t *testing.T) {
	if got := (UsageMap{"a": 1, "b": 2}).Total(); got != 3 {
		t.Fatalf("unexpected total %d", got)
	}
	huge := UsageMap{"a": math.MaxInt64 - 1, "b": 10, "c": 5}
	if got := huge.Total(); got != math.MaxInt64 {
		t.Fatalf("expected saturated total, got %d", got)
	}
	if got := (UsageMap{}).Total(); got != 0 {
		t.Fatalf("expected zero total, got %d", got)
	}
}

func TestUsageMapApplicationsSorted(t *testing.T) {
	got := UsageMap{"c": 1, "a": 2, "b": 3}.Applications()
	if !reflect.DeepEqual(got, []ApplicationID{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
}
