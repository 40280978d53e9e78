// Package presenter holds the screen state for the usage view: which phase the
// view is in, the last usage map and the selected application.
package presenter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olliecrow/screen_usage_monitor/internal/metrics"
	"github.com/olliecrow/screen_usage_monitor/internal/usage"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ViewState is a snapshot of everything the screen renders. Selected is only
// meaningful when HasSelection is set, and then it is a key of Usage.
type ViewState struct {
	Phase        Phase
	Usage        usage.UsageMap
	Err          error
	Selected     usage.ApplicationID
	HasSelection bool
	Seq          uint64
}

// Request is one issued provider call. Run performs it; the result must be
// handed back through Presenter.Resolve with the same Seq.
type Request struct {
	Seq      uint64
	ID       string
	Provider usage.Provider
}

func (r Request) Run(ctx context.Context) (usage.UsageMap, error) {
	if r.Provider == nil {
		return nil, &usage.UnavailableError{}
	}
	return r.Provider.RequestUsage(ctx)
}

// Presenter is not safe for concurrent use; it is driven from a single update loop.
type Presenter struct {
	binding usage.Binding
	logger  zerolog.Logger
	state   ViewState
	seq     uint64

	// pending is the selection carried across a load, revalidated on success.
	pending    usage.ApplicationID
	hasPending bool

	diagnostic error
}

func New(binding usage.Binding, logger zerolog.Logger) *Presenter {
	return &Presenter{
		binding: binding,
		logger:  logger.With().Str("component", "presenter").Logger(),
		state:   ViewState{Phase: PhaseLoading},
	}
}

func (p *Presenter) State() ViewState {
	return p.state
}

// Start issues a new request. When the provider is not bound no request is
// issued, the state is left untouched and ok is false.
func (p *Presenter) Start() (Request, bool) {
	var provider usage.Provider
	err := error(&usage.UnavailableError{})
	if p.binding != nil {
		provider, err = p.binding.Provider()
	}
	if err == nil && provider == nil {
		err = &usage.UnavailableError{Name: bindingName(p.binding)}
	}
	if err != nil {
		p.diagnostic = err
		p.logger.Error().Err(err).Msg("Usage provider is not available")
		return Request{}, false
	}
	p.diagnostic = nil

	p.seq++
	req := Request{Seq: p.seq, ID: uuid.NewString(), Provider: provider}
	if p.state.HasSelection {
		p.pending, p.hasPending = p.state.Selected, true
	}
	p.clearSelection()
	p.state.Phase = PhaseLoading
	p.state.Usage = nil
	p.state.Err = nil
	p.state.Seq = req.Seq

	p.logger.Debug().
		Uint64("seq", req.Seq).
		Str("request_id", req.ID).
		Str("provider", provider.Name()).
		Msg("Usage request issued")
	return req, true
}

// Diagnostic is the reason the most recent Start issued nothing, if it didn't.
func (p *Presenter) Diagnostic() error {
	return p.diagnostic
}

func (p *Presenter) Refresh() (Request, bool) {
	return p.Start()
}

// Resolve applies the outcome of request seq. Responses to anything but the
// latest issued request are dropped and Resolve returns false.
func (p *Presenter) Resolve(seq uint64, m usage.UsageMap, err error) bool {
	if seq == 0 || seq != p.seq || p.state.Phase != PhaseLoading {
		metrics.StaleResponsesDropped.Inc()
		p.logger.Debug().
			Uint64("seq", seq).
			Uint64("latest", p.seq).
			Msg("Dropping stale usage response")
		return false
	}

	if err != nil {
		p.state.Phase = PhaseFailed
		p.state.Usage = nil
		p.state.Err = err
		p.clearPending()
		event := p.logger.Error().Err(err).Uint64("seq", seq)
		var loadErr *usage.LoadError
		if errors.As(err, &loadErr) {
			event = event.Str("code", loadErr.Code)
		}
		event.Msg("Error getting screen time usage")
		return true
	}

	if m == nil {
		m = usage.UsageMap{}
	}
	p.state.Phase = PhaseLoaded
	p.state.Usage = m
	p.state.Err = nil
	if p.hasPending {
		if _, ok := m[p.pending]; ok {
			p.state.Selected, p.state.HasSelection = p.pending, true
		}
		p.clearPending()
	}
	p.logger.Debug().
		Uint64("seq", seq).
		Int("applications", len(m)).
		Msg("Screen time usage loaded")
	return true
}

// Select is honored only while loaded and only for an application in the
// current map.
func (p *Presenter) Select(app usage.ApplicationID) bool {
	if p.state.Phase != PhaseLoaded {
		return false
	}
	if _, ok := p.state.Usage[app]; !ok {
		return false
	}
	p.state.Selected = app
	p.state.HasSelection = true
	return true
}

// ClearSelection also drops a selection waiting on an in-flight load.
func (p *Presenter) ClearSelection() {
	p.clearSelection()
	p.clearPending()
}

func (p *Presenter) clearSelection() {
	p.state.Selected = ""
	p.state.HasSelection = false
}

func (p *Presenter) clearPending() {
	p.pending = ""
	p.hasPending = false
}

func bindingName(b usage.Binding) string {
	if named, ok := b.(interface{ Name() string }); ok {
		return named.Name()
	}
	return ""
}

// Applications is the displayed list: the key set of the loaded map in a
// stable order, empty in any other phase.
func (s ViewState) Applications() []usage.ApplicationID {
	if s.Phase != PhaseLoaded {
		return nil
	}
	return s.Usage.Applications()
}

// SelectedLine renders the selected application as "<identifier>: <duration> ms".
func (s ViewState) SelectedLine() (string, bool) {
	if s.Phase != PhaseLoaded || !s.HasSelection {
		return "", false
	}
	d, ok := s.Usage[s.Selected]
	if !ok {
		return "", false
	}
	return FormatUsageLine(s.Selected, d), true
}

func FormatUsageLine(app usage.ApplicationID, d usage.DurationMillis) string {
	return fmt.Sprintf("%s: %d ms", app, int64(d))
}
