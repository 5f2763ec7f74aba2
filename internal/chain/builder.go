package chain

import (
	"context"
	"fmt"
)

// Step is a named processor in a Chain.
type Step struct {
	Name      string
	Processor Processor
}

// Outcome describes how a Chain handled one event.
type Outcome struct {
	// Step is the name of the step that matched or failed. Empty when the
	// event passed through untouched.
	Step    string
	Matched bool
	Result  any
}

// Builder collects steps in priority order. The first error recorded by Add
// is returned by Build.
type Builder struct {
	steps []Step
	names map[string]struct{}
	err   error
}

func NewBuilder() *Builder {
	return &Builder{names: make(map[string]struct{})}
}

// Add appends a step. Names must be unique within one builder.
func (b *Builder) Add(name string, p Processor) *Builder {
	if b.err != nil {
		return b
	}
	if isNilProcessor(p) {
		b.err = fmt.Errorf("step %q: %w", name, ErrNilProcessor)
		return b
	}
	if _, dup := b.names[name]; dup {
		b.err = fmt.Errorf("chain: duplicate step name %q", name)
		return b
	}
	b.names[name] = struct{}{}
	b.steps = append(b.steps, Step{Name: name, Processor: p})
	return b
}

// AddFunc is Add for a predicate/process pair.
func (b *Builder) AddFunc(name string, match Predicate, run ProcessFunc) *Builder {
	p, err := NewFunctionalProcessor(match, run)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("step %q: %w", name, err)
		}
		return b
	}
	return b.Add(name, p)
}

// Build returns an immutable Chain holding its own copy of the steps.
func (b *Builder) Build() (*Chain, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.steps) == 0 {
		return nil, ErrEmptyChain
	}
	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)
	return &Chain{steps: steps}, nil
}

// Chain is an ordered, immutable sequence of steps. It is safe for
// concurrent use as long as its processors are.
type Chain struct {
	steps []Step
}

// Dispatch runs ev through the steps in order and reports which one
// matched. On error the outcome names the failing step and the error is
// returned unchanged.
func (c *Chain) Dispatch(ctx context.Context, ev Event) (Outcome, error) {
	for _, s := range c.steps {
		ok, err := s.Processor.CanHandle(ctx, ev)
		if err != nil {
			return Outcome{Step: s.Name}, err
		}
		if !ok {
			continue
		}
		res, err := s.Processor.Process(ctx, ev)
		if err != nil {
			return Outcome{Step: s.Name, Matched: true}, err
		}
		return Outcome{Step: s.Name, Matched: true, Result: res}, nil
	}
	return Outcome{Result: ev}, nil
}

// Handle is Dispatch without the outcome metadata.
func (c *Chain) Handle(ctx context.Context, ev Event) (any, error) {
	out, err := c.Dispatch(ctx, ev)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Steps returns the step names in priority order.
func (c *Chain) Steps() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

func (c *Chain) Len() int {
	return len(c.steps)
}
