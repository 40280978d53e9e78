package usage

import (
	"strings"
	"time"
)

type reportFileRaw struct {
	Version      int              `json:"version"`
	GeneratedAt  *time.Time       `json:"generated_at"`
	Window       string           `json:"window"`
	Applications []reportEntryRaw `json:"applications"`
}

type reportEntryRaw struct {
	ID           string `json:"id"`
	TotalUsageMs *int64 `json:"total_usage_ms"`
}

type reportSnapshot struct {
	order []ApplicationID
	data  map[ApplicationID]ApplicationData
}

// normalizeReportEntries lists each identifier once, at its first position.
// A repeated identifier overwrites the earlier total; entries without a total
// record nothing.
func normalizeReportEntries(entries []reportEntryRaw) reportSnapshot {
	out := reportSnapshot{data: map[ApplicationID]ApplicationData{}}
	seen := map[ApplicationID]struct{}{}
	for _, entry := range entries {
		id := ApplicationID(strings.TrimSpace(entry.ID))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out.order = append(out.order, id)
		}
		if entry.TotalUsageMs != nil {
			out.data[id] = ApplicationData{TotalUsage: DurationMillis(*entry.TotalUsageMs)}
		}
	}
	return out
}

func (s reportSnapshot) AllApplications() []ApplicationID {
	return append([]ApplicationID(nil), s.order...)
}

func (s reportSnapshot) ApplicationData(app ApplicationID) (ApplicationData, bool) {
	data, ok := s.data[app]
	return data, ok
}
