package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/holdmed/internal/store"
)

func newTestManager(idle time.Duration) *Manager {
	return NewManager(store.NewDemoStore(), NewEngineAssessor(nil, 0), ManagerOptions{
		InsightTimeout: time.Second,
		IdleTimeout:    idle,
	})
}

func TestManagerSessionOwnership(t *testing.T) {
	m := newTestManager(time.Minute)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "admin@holdmed.com")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Len(t, s.Roster(), 2)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID, "admin@holdmed.com")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get(s.ID, "someone@else.com")
	assert.ErrorIs(t, err, ErrSessionForbidden)

	_, err = m.Get("missing", "admin@holdmed.com")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, m.Close(s.ID, "someone@else.com"), ErrSessionForbidden)
	require.NoError(t, m.Close(s.ID, "admin@holdmed.com"))
	assert.Equal(t, 0, m.Count())

	_, err = s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	m := newTestManager(time.Minute)
	defer m.Shutdown()

	a, err := m.Create(context.Background(), "a@holdmed.com")
	require.NoError(t, err)
	b, err := m.Create(context.Background(), "b@holdmed.com")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = a.Select(context.Background(), "2")
	require.NoError(t, err)

	snapA := waitForSnapshot(t, a, ready)
	snapB := waitForSnapshot(t, b, ready)
	assert.Equal(t, "2", snapA.SelectedPatient.ID)
	assert.Equal(t, "1", snapB.SelectedPatient.ID)
}

func TestManagerReap(t *testing.T) {
	m := newTestManager(time.Minute)
	defer m.Shutdown()

	s, err := m.Create(context.Background(), "admin@holdmed.com")
	require.NoError(t, err)

	assert.Equal(t, 0, m.Reap(time.Now()))
	assert.Equal(t, 1, m.Count())

	assert.Equal(t, 1, m.Reap(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Count())

	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("reaped session was not closed")
	}
}

func TestManagerRunShutsDownOnCancel(t *testing.T) {
	m := newTestManager(time.Minute)
	_, err := m.Create(context.Background(), "admin@holdmed.com")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, m.Count())
}
