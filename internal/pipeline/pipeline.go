package pipeline

import (
	"context"
	"time"

	"call-classifier/internal/chain"
	"call-classifier/pkg/logger"
)

// Pipeline is the synchronous entry point: it runs one event through the
// chain and records what happened. Errors are returned exactly as the
// matching processor produced them.
type Pipeline struct {
	chain   *chain.Chain
	metrics *Metrics
}

func New(c *chain.Chain, metrics *Metrics) *Pipeline {
	logger.Get().Infow("pipeline assembled", "steps", c.Steps())
	return &Pipeline{chain: c, metrics: metrics}
}

// Dispatch runs env.Event and reports which step handled it. When nothing
// matches, the result is env.Event itself.
func (p *Pipeline) Dispatch(ctx context.Context, env Envelope) (Dispatched, error) {
	p.metrics.IncReceived()
	start := time.Now()

	out, err := p.chain.Dispatch(ctx, env.Event)
	elapsed := time.Since(start)
	p.metrics.Observe(out.Step, out.Matched, err, elapsed)

	log := logger.Get().With("event_id", env.ID, "step", out.Step)
	switch {
	case err != nil:
		log.Warnw("event failed", "error", err, "latency_ms", elapsed.Milliseconds())
	case out.Matched:
		log.Infow("event handled", "latency_ms", elapsed.Milliseconds())
	default:
		log.Debugw("event passed through unmatched", "type", env.Event["type"], "source", env.Event["source"])
	}
	return Dispatched{EventID: env.ID, Outcome: out}, err
}

// Handle satisfies chain.Entry.
func (p *Pipeline) Handle(ctx context.Context, ev chain.Event) (any, error) {
	out, err := p.Dispatch(ctx, NewEnvelope(ev))
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (p *Pipeline) Steps() []string {
	return p.chain.Steps()
}

func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}
