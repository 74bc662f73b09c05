package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/insight"
)

var (
	ErrInvalidTab       = errors.New("invalid tab")
	ErrNoSelection      = errors.New("no patient selected")
	ErrUnknownPatient   = errors.New("patient is not on the session roster")
	ErrInsightTimeout   = errors.New("insight computation timed out")
	ErrInsightMissing   = errors.New("insight computation returned no result")
	ErrSessionClosed    = errors.New("dashboard session closed")
	ErrSessionNotFound  = errors.New("dashboard session not found")
	ErrSessionForbidden = errors.New("dashboard session belongs to another clinician")
)

// Tab is the active data view of the dashboard
type Tab string

const (
	TabVitals Tab = "vitals"
	TabLabs   Tab = "labs"
	TabTrends Tab = "trends"
)

// ParseTab validates a tab name coming from the presentation layer.
func ParseTab(name string) (Tab, error) {
	switch tab := Tab(strings.TrimSpace(name)); tab {
	case TabVitals, TabLabs, TabTrends:
		return tab, nil
	default:
		return "", fmt.Errorf("%w: %q (expected vitals, labs or trends)", ErrInvalidTab, name)
	}
}

// Phase is the selection/loading phase derived from the view state
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

// Request is an insight computation that must be started after a selection.
type Request struct {
	Seq     uint64
	Patient *clinical.Patient
}

// Result is the outcome of a Request delivered back to the view state.
type Result struct {
	Seq       uint64
	PatientID string
	Insight   *insight.RiskInsight
	Err       error
}

// ViewState is the dashboard state owned by a single session. Its transition
// methods are the only mutators; it is not safe for concurrent use.
type ViewState struct {
	selected    *clinical.Patient
	tab         Tab
	loading     bool
	insight     *insight.RiskInsight
	unavailable error
	seq         uint64
}

// NewViewState starts Idle, or auto-selects the first patient of a non-empty
// roster and returns the request to run.
func NewViewState(roster []*clinical.Patient) (*ViewState, *Request) {
	vs := &ViewState{tab: TabVitals}
	if len(roster) == 0 {
		return vs, nil
	}
	req := vs.Select(roster[0])
	return vs, &req
}

// Select records p as the current patient, discards any prior insight and
// supersedes whatever computation is in flight.
func (vs *ViewState) Select(p *clinical.Patient) Request {
	vs.seq++
	vs.selected = p
	vs.loading = true
	vs.insight = nil
	vs.unavailable = nil
	return Request{Seq: vs.seq, Patient: p}
}

// InsightReady applies r if it belongs to the current selection and reports
// whether it was accepted. Results for superseded selections are dropped.
func (vs *ViewState) InsightReady(r Result) bool {
	if vs.selected == nil || !vs.loading {
		return false
	}
	if r.Seq != vs.seq || r.PatientID != vs.selected.ID {
		return false
	}
	if r.Err == nil && r.Insight != nil && r.Insight.PatientID != vs.selected.ID {
		return false
	}

	vs.loading = false
	switch {
	case r.Err != nil:
		vs.insight = nil
		vs.unavailable = r.Err
	case r.Insight == nil:
		vs.insight = nil
		vs.unavailable = ErrInsightMissing
	default:
		vs.insight = r.Insight
		vs.unavailable = nil
	}
	return true
}

// SetTab changes the active tab. It never touches loading or insight state.
func (vs *ViewState) SetTab(tab Tab) error {
	parsed, err := ParseTab(string(tab))
	if err != nil {
		return err
	}
	if vs.selected == nil {
		return ErrNoSelection
	}
	vs.tab = parsed
	return nil
}

func (vs *ViewState) Phase() Phase {
	switch {
	case vs.selected == nil:
		return PhaseIdle
	case vs.loading:
		return PhaseLoading
	default:
		return PhaseReady
	}
}

func (vs *ViewState) Selected() *clinical.Patient   { return vs.selected }
func (vs *ViewState) ActiveTab() Tab                { return vs.tab }
func (vs *ViewState) Loading() bool                 { return vs.loading }
func (vs *ViewState) Insight() *insight.RiskInsight { return vs.insight }
func (vs *ViewState) Unavailable() error            { return vs.unavailable }
func (vs *ViewState) Selection() uint64             { return vs.seq }

// Risk badge values shown next to the selected patient
const (
	BadgeNone        = ""
	BadgeAnalyzing   = "analyzing"
	BadgeHighRisk    = "high_risk"
	BadgeLowRisk     = "low_risk"
	BadgeUnavailable = "unavailable"
)

// Snapshot is the read model the presentation layer renders.
type Snapshot struct {
	Phase              Phase                `json:"phase"`
	SelectedPatient    *clinical.Patient    `json:"selected_patient"`
	ActiveTab          Tab                  `json:"active_tab"`
	Loading            bool                 `json:"loading"`
	Insight            *insight.RiskInsight `json:"insight"`
	InsightUnavailable string               `json:"insight_unavailable,omitempty"`
	RiskBadge          string               `json:"risk_badge"`
	Trends             []clinical.Trend     `json:"trends,omitempty"`
	Selection          uint64               `json:"selection"`
}

// Snapshot projects the current state for rendering.
func (vs *ViewState) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:           vs.Phase(),
		SelectedPatient: vs.selected,
		ActiveTab:       vs.tab,
		Loading:         vs.loading,
		Insight:         vs.insight,
		Selection:       vs.seq,
	}
	if vs.unavailable != nil {
		snap.InsightUnavailable = vs.unavailable.Error()
	}

	switch {
	case vs.selected == nil:
		snap.RiskBadge = BadgeNone
	case vs.loading:
		snap.RiskBadge = BadgeAnalyzing
	case vs.insight == nil:
		snap.RiskBadge = BadgeUnavailable
	case vs.insight.ComplicationPredicted:
		snap.RiskBadge = BadgeHighRisk
	default:
		snap.RiskBadge = BadgeLowRisk
	}

	if vs.selected != nil && vs.tab == TabTrends {
		snap.Trends = clinical.Trends(vs.selected)
	}
	return snap
}
