package dashboard

import (
	"context"
	"time"

	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/metrics"
)

// Assessor runs an insight computation. Implementations may block and should
// return when ctx is done.
type Assessor interface {
	Assess(ctx context.Context, p *clinical.Patient) (*insight.RiskInsight, error)
}

// AssessorFunc adapts a function to Assessor.
type AssessorFunc func(ctx context.Context, p *clinical.Patient) (*insight.RiskInsight, error)

func (f AssessorFunc) Assess(ctx context.Context, p *clinical.Patient) (*insight.RiskInsight, error) {
	return f(ctx, p)
}

// EngineAssessor runs the insight engine after an optional simulated latency.
type EngineAssessor struct {
	Engine *insight.Engine
	Delay  time.Duration
}

// NewEngineAssessor wraps engine, waiting delay before each computation.
func NewEngineAssessor(engine *insight.Engine, delay time.Duration) *EngineAssessor {
	if engine == nil {
		engine = insight.NewEngine(nil)
	}
	return &EngineAssessor{Engine: engine, Delay: delay}
}

func (a *EngineAssessor) Assess(ctx context.Context, p *clinical.Patient) (*insight.RiskInsight, error) {
	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	start := time.Now()
	ri, err := a.Engine.Compute(p)
	metrics.RecordInsightDuration(a.Engine.ModelName(), time.Since(start))
	return ri, err
}
