package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/metrics"
)

const (
	DefaultInsightTimeout = 10 * time.Second

	subscriberBuffer = 1
)

// sessionCommand is executed inside the session loop.
type sessionCommand struct {
	apply func() (Snapshot, error)
	reply chan commandReply
}

type commandReply struct {
	snapshot Snapshot
	err      error
}

// Session owns one clinician's ViewState. All transitions run on a single
// goroutine; insight computations run on their own goroutines and report
// back through resultCh.
type Session struct {
	ID    string
	Owner string

	roster   []*clinical.Patient
	byID     map[string]*clinical.Patient
	assessor Assessor
	timeout  time.Duration

	cmdCh    chan sessionCommand
	resultCh chan Result
	done     chan struct{}
	stopped  chan struct{}

	closeOnce    sync.Once
	lastActivity atomic.Int64

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}

	// loop-owned
	state    *ViewState
	inFlight context.CancelFunc
}

// NewSession creates a session over roster and starts its loop. A non-empty
// roster auto-selects its first patient.
func NewSession(id, owner string, roster []*clinical.Patient, assessor Assessor, insightTimeout time.Duration) *Session {
	if insightTimeout <= 0 {
		insightTimeout = DefaultInsightTimeout
	}

	s := &Session{
		ID:          id,
		Owner:       owner,
		roster:      roster,
		byID:        make(map[string]*clinical.Patient, len(roster)),
		assessor:    assessor,
		timeout:     insightTimeout,
		cmdCh:       make(chan sessionCommand),
		resultCh:    make(chan Result),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, p := range roster {
		s.byID[p.ID] = p
	}
	s.touch()

	state, req := NewViewState(roster)
	s.state = state
	if req != nil {
		s.start(*req)
	}

	go s.run()

	log.Info().
		Str("session", id).
		Str("owner", owner).
		Int("roster", len(roster)).
		Msg("Dashboard session started")

	return s
}

// Roster returns the patients this session was opened with.
func (s *Session) Roster() []*clinical.Patient {
	return s.roster
}

// Select makes patientID the current patient and starts its insight computation.
func (s *Session) Select(ctx context.Context, patientID string) (Snapshot, error) {
	p, ok := s.byID[patientID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%s: %w", patientID, ErrUnknownPatient)
	}

	return s.do(ctx, func() (Snapshot, error) {
		previous := s.state.Selected()
		req := s.state.Select(p)
		s.start(req)

		evt := log.Debug().
			Str("session", s.ID).
			Str("patient", p.ID).
			Uint64("selection", req.Seq)
		if previous != nil {
			evt = evt.Str("previous", previous.ID)
		}
		evt.Msg("Patient selected")

		metrics.RecordSelection()
		snap := s.state.Snapshot()
		s.publish(snap)
		return snap, nil
	})
}

// SetTab switches the active data view.
func (s *Session) SetTab(ctx context.Context, tab Tab) (Snapshot, error) {
	return s.do(ctx, func() (Snapshot, error) {
		if err := s.state.SetTab(tab); err != nil {
			return s.state.Snapshot(), err
		}
		snap := s.state.Snapshot()
		s.publish(snap)
		return snap, nil
	})
}

// Snapshot returns the current view state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.do(ctx, func() (Snapshot, error) {
		return s.state.Snapshot(), nil
	})
}

// Subscribe returns a channel receiving every new snapshot. Slow readers only
// see the most recent one. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	s.subMu.Lock()
	select {
	case <-s.done:
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Close stops the session loop and cancels any in-flight computation.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.subMu.Lock()
		close(s.done)
		for ch := range s.subscribers {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subMu.Unlock()

		<-s.stopped
		log.Info().Str("session", s.ID).Msg("Dashboard session closed")
	})
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastActivity is the time of the most recent command.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// do runs fn on the session loop and waits for its reply.
func (s *Session) do(ctx context.Context, fn func() (Snapshot, error)) (Snapshot, error) {
	s.touch()
	cmd := sessionCommand{apply: fn, reply: make(chan commandReply, 1)}

	select {
	case s.cmdCh <- cmd:
	case <-s.done:
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.snapshot, r.err
	case <-s.done:
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.stopped)
	defer func() {
		if s.inFlight != nil {
			s.inFlight()
		}
	}()

	for {
		select {
		case cmd := <-s.cmdCh:
			snap, err := cmd.apply()
			cmd.reply <- commandReply{snapshot: snap, err: err}
		case res := <-s.resultCh:
			s.applyResult(res)
		case <-s.done:
			return
		}
	}
}

// start launches the computation for req, cancelling the superseded one.
func (s *Session) start(req Request) {
	if s.inFlight != nil {
		s.inFlight()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.inFlight = cancel

	go func() {
		defer cancel()

		out := make(chan Result, 1)
		go func() {
			ri, err := s.assessor.Assess(ctx, req.Patient)
			out <- Result{Seq: req.Seq, PatientID: req.Patient.ID, Insight: ri, Err: err}
		}()

		var res Result
		select {
		case res = <-out:
		case <-ctx.Done():
			res = Result{Seq: req.Seq, PatientID: req.Patient.ID, Err: ctx.Err()}
		}
		if errors.Is(res.Err, context.DeadlineExceeded) {
			res.Err = ErrInsightTimeout
		}

		select {
		case s.resultCh <- res:
		case <-s.done:
		}
	}()
}

func (s *Session) applyResult(res Result) {
	if !s.state.InsightReady(res) {
		log.Debug().
			Str("session", s.ID).
			Str("patient", res.PatientID).
			Uint64("selection", res.Seq).
			Uint64("current", s.state.Selection()).
			Msg("Discarded superseded insight result")
		metrics.RecordStaleInsight()
		return
	}
	s.inFlight = nil

	if err := s.state.Unavailable(); err != nil {
		log.Warn().
			Err(err).
			Str("session", s.ID).
			Str("patient", res.PatientID).
			Msg("Insight unavailable")
		metrics.RecordInsightUnavailable(unavailableReason(err))
	} else if ri := s.state.Insight(); ri != nil {
		log.Info().
			Str("session", s.ID).
			Str("patient", ri.PatientID).
			Str("classification", string(ri.Classification)).
			Int("complication_percent", ri.ComplicationPercent).
			Msg("Insight ready")
		metrics.RecordInsightComputation(string(ri.Classification))
	}

	s.publish(s.state.Snapshot())
}

func (s *Session) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// keep only the newest snapshot for slow readers
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func unavailableReason(err error) string {
	switch {
	case errors.Is(err, insight.ErrNoVitalData):
		return "no_vital_data"
	case errors.Is(err, ErrInsightTimeout):
		return "timeout"
	case errors.Is(err, ErrInsightMissing):
		return "missing"
	default:
		return "error"
	}
}
