package usage

import (
	"math"
	"sort"
	"time"
)

// ApplicationID is the opaque application token supplied by the activity report.
type ApplicationID string

// DurationMillis is a cumulative foreground duration in milliseconds.
type DurationMillis int64

const maxDurationMillis = DurationMillis(math.MaxInt64 / int64(time.Millisecond))

// Duration saturates at the time.Duration range.
func (d DurationMillis) Duration() time.Duration {
	switch {
	case d > maxDurationMillis:
		return time.Duration(math.MaxInt64)
	case d < -maxDurationMillis:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(d) * time.Millisecond
}

// UsageMap maps each reporting application to its cumulative usage.
type UsageMap map[ApplicationID]DurationMillis

// Applications returns the keys in lexicographic order so renders are stable.
func (m UsageMap) Applications() []ApplicationID {
	out := make([]ApplicationID, 0, len(m))
	for app := range m {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m UsageMap) Lookup(app ApplicationID) (DurationMillis, bool) {
	d, ok := m[app]
	return d, ok
}

// Total sums every recorded duration, saturating instead of overflowing.
func (m UsageMap) Total() DurationMillis {
	var total DurationMillis
	for _, d := range m {
		switch {
		case d > 0 && total > math.MaxInt64-d:
			total = math.MaxInt64
		case d < 0 && total < math.MinInt64-d:
			total = math.MinInt64
		default:
			total += d
		}
	}
	return total
}

// ApplicationData is the per-application entry of an activity report.
type ApplicationData struct {
	TotalUsage DurationMillis
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details"`
}
