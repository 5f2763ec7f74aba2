// Package chain implements a first-match-wins Chain of Responsibility.
//
// A Processor decides whether it applies to an Event and, if so, does the
// work. Processors are composed either as linked Handlers or as an immutable
// Chain built with a Builder. In both forms the first Processor that accepts
// an Event produces the result and traversal stops; if none accepts it the
// Event itself is returned.
//
// The package never logs, retries, wraps or recovers errors. Whatever a
// Processor returns as an error reaches the caller unchanged.
package chain

import (
	"context"
	"errors"
	"reflect"
)

// Event is the payload traveling through a chain. The chain never mutates it.
type Event map[string]any

// Processor is one unit of conditional work.
type Processor interface {
	// CanHandle reports whether Process applies to ev. It must be free of
	// side effects.
	CanHandle(ctx context.Context, ev Event) (bool, error)
	// Process is only called after CanHandle returned true for the same
	// event in the same traversal.
	Process(ctx context.Context, ev Event) (any, error)
}

// Predicate decides applicability and may fail.
type Predicate func(ctx context.Context, ev Event) (bool, error)

// Filter is a predicate that cannot fail.
type Filter func(ev Event) bool

// ProcessFunc performs the work of a processor.
type ProcessFunc func(ctx context.Context, ev Event) (any, error)

var ErrNilProcessor = errors.New("chain: processor requires both a predicate and a process function")

// isNilProcessor also catches a nil pointer stored in the interface, which
// would otherwise only fail on first use.
func isNilProcessor(p Processor) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// FunctionalProcessor is a Processor built from two independent functions
// that share nothing but what each closes over.
type FunctionalProcessor struct {
	match Predicate
	run   ProcessFunc
}

// NewFunctionalProcessor pairs a predicate with a process function.
func NewFunctionalProcessor(match Predicate, run ProcessFunc) (*FunctionalProcessor, error) {
	if match == nil || run == nil {
		return nil, ErrNilProcessor
	}
	return &FunctionalProcessor{match: match, run: run}, nil
}

// MustFunctional is NewFunctionalProcessor for composition roots where a nil
// function is a programming error.
func MustFunctional(match Predicate, run ProcessFunc) *FunctionalProcessor {
	p, err := NewFunctionalProcessor(match, run)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *FunctionalProcessor) CanHandle(ctx context.Context, ev Event) (bool, error) {
	return p.match(ctx, ev)
}

func (p *FunctionalProcessor) Process(ctx context.Context, ev Event) (any, error) {
	return p.run(ctx, ev)
}

// Match lifts an infallible Filter into a Predicate.
func Match(f Filter) Predicate {
	return func(_ context.Context, ev Event) (bool, error) {
		return f(ev), nil
	}
}

// FieldEquals matches events whose key holds exactly value.
func FieldEquals(key string, value any) Filter {
	return func(ev Event) bool {
		v, ok := ev[key]
		return ok && v == value
	}
}

// AnyOf matches when at least one filter matches. Filters run in order and
// stop at the first match.
func AnyOf(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if f(ev) {
				return true
			}
		}
		return false
	}
}

// AllOf matches when every filter matches.
func AllOf(filters ...Filter) Filter {
	return func(ev Event) bool {
		for _, f := range filters {
			if !f(ev) {
				return false
			}
		}
		return true
	}
}
