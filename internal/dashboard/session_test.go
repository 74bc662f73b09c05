package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/store"
)

const waitFor = 2 * time.Second

// gatedAssessor blocks each computation until the test releases it for that
// patient id.
type gatedAssessor struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedAssessor(ids ...string) *gatedAssessor {
	g := &gatedAssessor{gates: make(map[string]chan struct{})}
	for _, id := range ids {
		g.gates[id] = make(chan struct{})
	}
	return g
}

func (g *gatedAssessor) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[id])
}

func (g *gatedAssessor) Assess(ctx context.Context, p *clinical.Patient) (*insight.RiskInsight, error) {
	g.mu.Lock()
	gate := g.gates[p.ID]
	g.mu.Unlock()

	select {
	case <-gate:
		return insight.ComputeInsight(p)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitForSnapshot(t *testing.T, s *Session, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var last Snapshot
	require.Eventually(t, func() bool {
		snap, err := s.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = snap
		return cond(snap)
	}, waitFor, 5*time.Millisecond)
	return last
}

func ready(snap Snapshot) bool { return snap.Phase == PhaseReady }

func TestSessionAutoSelectsFirstPatient(t *testing.T) {
	s := NewSession("s1", "clinician", store.DemoRoster(), NewEngineAssessor(nil, 0), time.Second)
	defer s.Close()

	snap := waitForSnapshot(t, s, ready)
	require.NotNil(t, snap.SelectedPatient)
	assert.Equal(t, "1", snap.SelectedPatient.ID)
	require.NotNil(t, snap.Insight)
	assert.Equal(t, insight.ClassificationHigh, snap.Insight.Classification)
	assert.Equal(t, BadgeHighRisk, snap.RiskBadge)
}

func TestSessionEmptyRosterIsIdle(t *testing.T) {
	s := NewSession("s1", "clinician", nil, NewEngineAssessor(nil, 0), time.Second)
	defer s.Close()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, snap.Phase)

	_, err = s.SetTab(context.Background(), TabLabs)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestSessionDiscardsSupersededResult(t *testing.T) {
	gates := newGatedAssessor("1", "2")
	s := NewSession("s1", "clinician", store.DemoRoster(), gates, time.Second)
	defer s.Close()

	snap, err := s.Select(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.Equal(t, "2", snap.SelectedPatient.ID)

	// the first computation was cancelled; releasing it must not surface
	gates.release("1")
	time.Sleep(20 * time.Millisecond)

	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseLoading, snap.Phase)
	assert.Nil(t, snap.Insight)

	gates.release("2")
	snap = waitForSnapshot(t, s, ready)
	require.NotNil(t, snap.Insight)
	assert.Equal(t, "2", snap.Insight.PatientID)
	assert.Equal(t, BadgeLowRisk, snap.RiskBadge)
}

func TestSessionInsightTimeout(t *testing.T) {
	gates := newGatedAssessor("1")
	s := NewSession("s1", "clinician", store.DemoRoster(), gates, 30*time.Millisecond)
	defer s.Close()

	snap := waitForSnapshot(t, s, ready)
	assert.Nil(t, snap.Insight)
	assert.Equal(t, BadgeUnavailable, snap.RiskBadge)
	assert.Equal(t, ErrInsightTimeout.Error(), snap.InsightUnavailable)
}

func TestSessionNoVitalData(t *testing.T) {
	roster := []*clinical.Patient{{ID: "9", Name: "Sem Dados"}}
	s := NewSession("s1", "clinician", roster, NewEngineAssessor(nil, 0), time.Second)
	defer s.Close()

	snap := waitForSnapshot(t, s, ready)
	assert.Nil(t, snap.Insight)
	assert.Equal(t, BadgeUnavailable, snap.RiskBadge)
	assert.Contains(t, snap.InsightUnavailable, insight.ErrNoVitalData.Error())
}

func TestSessionSelectUnknownPatient(t *testing.T) {
	s := NewSession("s1", "clinician", store.DemoRoster(), NewEngineAssessor(nil, 0), time.Second)
	defer s.Close()

	_, err := s.Select(context.Background(), "404")
	assert.ErrorIs(t, err, ErrUnknownPatient)
}

func TestSessionSetTab(t *testing.T) {
	s := NewSession("s1", "clinician", store.DemoRoster(), NewEngineAssessor(nil, 0), time.Second)
	defer s.Close()

	snap, err := s.SetTab(context.Background(), TabTrends)
	require.NoError(t, err)
	assert.Equal(t, TabTrends, snap.ActiveTab)
	assert.NotEmpty(t, snap.Trends)

	_, err = s.SetTab(context.Background(), Tab("imaging"))
	assert.ErrorIs(t, err, ErrInvalidTab)

	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TabTrends, snap.ActiveTab)
}

func TestSessionSubscribe(t *testing.T) {
	gates := newGatedAssessor("1", "2")
	s := NewSession("s1", "clinician", store.DemoRoster(), gates, time.Second)
	defer s.Close()

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	gates.release("1")

	select {
	case snap := <-events:
		assert.Equal(t, PhaseReady, snap.Phase)
		require.NotNil(t, snap.Insight)
		assert.Equal(t, "1", snap.Insight.PatientID)
	case <-time.After(waitFor):
		t.Fatal("no snapshot published")
	}
}

func TestSessionClose(t *testing.T) {
	s := NewSession("s1", "clinician", store.DemoRoster(), newGatedAssessor("1"), time.Second)
	events, _ := s.Subscribe()

	s.Close()
	s.Close()

	_, ok := <-events
	assert.False(t, ok, "subscriber channel should be closed")

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestEngineAssessorHonoursContext(t *testing.T) {
	a := NewEngineAssessor(nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Assess(ctx, store.DemoRoster()[0])
	assert.ErrorIs(t, err, context.Canceled)
}
