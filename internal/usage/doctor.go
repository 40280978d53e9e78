package usage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const bindingCheckName = "provider binding"

type DoctorReport struct {
	Provider string        `json:"provider"`
	Checks   []DoctorCheck `json:"checks"`
}

// RunDoctor checks that the selected provider is bound and that every bound
// provider can load its report.
func RunDoctor(ctx context.Context, registry *Registry, selected string, timeout time.Duration) DoctorReport {
	selected = normalizeName(selected)
	report := DoctorReport{Provider: selected}
	report.Checks = append(report.Checks, checkBinding(registry, selected))

	for _, name := range registry.Names() {
		provider, err := registry.Lookup(name)
		if err != nil {
			continue
		}
		report.Checks = append(report.Checks, checkProviderLoad(ctx, provider, timeout))
	}
	return report
}

// Healthy is true when the selected provider is bound and its report loads.
func (r DoctorReport) Healthy() bool {
	var bound, loaded bool
	for _, c := range r.Checks {
		switch c.Name {
		case bindingCheckName:
			bound = c.OK
		case r.Provider + " load":
			loaded = c.OK
		}
	}
	return bound && loaded
}

func checkBinding(registry *Registry, selected string) DoctorCheck {
	if _, err := registry.Lookup(selected); err != nil {
		bound := registry.Names()
		details := "no providers are bound"
		if len(bound) > 0 {
			details = "bound providers: " + strings.Join(bound, ", ")
		}
		return DoctorCheck{
			Name:    bindingCheckName,
			OK:      false,
			Details: fmt.Sprintf("%v; %s", err, details),
		}
	}
	return DoctorCheck{
		Name:    bindingCheckName,
		OK:      true,
		Details: fmt.Sprintf("%q is bound", selected),
	}
}

func checkProviderLoad(parent context.Context, provider Provider, timeout time.Duration) DoctorCheck {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	out, err := provider.RequestUsage(ctx)
	if err != nil {
		return DoctorCheck{
			Name:    provider.Name() + " load",
			OK:      false,
			Details: err.Error(),
		}
	}
	return DoctorCheck{
		Name: provider.Name() + " load",
		OK:   true,
		Details: fmt.Sprintf(
			"applications=%d total=%s",
			len(out),
			out.Total().Duration().Round(time.Second),
		),
	}
}
