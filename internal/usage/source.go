package usage

import "context"

// Provider is the bridge into the platform activity report. RequestUsage is
// single-shot: it resolves exactly once with a non-nil map or an error.
type Provider interface {
	Name() string
	RequestUsage(context.Context) (UsageMap, error)
	Close() error
}

// Binding resolves the provider at call time. A binding that cannot resolve
// returns an *UnavailableError.
type Binding interface {
	Provider() (Provider, error)
}

// ActivityReport is one load of the platform report. AllApplications and
// ApplicationData are only meaningful after a successful Load.
type ActivityReport interface {
	Load(context.Context) error
	AllApplications() []ApplicationID
	ApplicationData(ApplicationID) (ApplicationData, bool)
}

// ReportOpener creates a fresh report for every request.
type ReportOpener func() ActivityReport
