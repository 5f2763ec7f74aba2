package chain

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrEmptyChain     = errors.New("chain: at least one processor is required")
	ErrNilHandler     = errors.New("chain: successor handler is nil")
	ErrNextAlreadySet = errors.New("chain: handler already has a successor")
	ErrCycle          = errors.New("chain: link would create a cycle")
	ErrSealed         = errors.New("chain: topology is frozen after the first Handle call")
)

// Entry is the single operation a pipeline exposes to its caller. Both
// *Handler and *Chain satisfy it.
type Entry interface {
	Handle(ctx context.Context, ev Event) (any, error)
}

// Handler is a node of a singly linked dispatch chain. It wraps exactly one
// Processor and optionally points to the next Handler.
//
// Links are set once while the chain is assembled. The first call to Handle
// freezes every reachable node; SetNext fails afterwards.
type Handler struct {
	processor Processor
	next      *Handler
	sealed    atomic.Bool
}

// NewHandler wraps p in a Handler without a successor.
func NewHandler(p Processor) (*Handler, error) {
	if isNilProcessor(p) {
		return nil, ErrNilProcessor
	}
	return &Handler{processor: p}, nil
}

// SetNext links next after h. It may be called once per handler, before the
// chain is first used.
func (h *Handler) SetNext(next *Handler) error {
	if next == nil {
		return ErrNilHandler
	}
	if h.sealed.Load() {
		return ErrSealed
	}
	if h.next != nil {
		return ErrNextAlreadySet
	}
	for cur := next; cur != nil; cur = cur.next {
		if cur == h {
			return ErrCycle
		}
	}
	h.next = next
	return nil
}

// Next returns the successor, or nil at the tail.
func (h *Handler) Next() *Handler {
	return h.next
}

// Handle walks the chain starting at h. The first processor that accepts ev
// produces the result. When no processor accepts it, ev is returned as is.
func (h *Handler) Handle(ctx context.Context, ev Event) (any, error) {
	if !h.sealed.Load() {
		for cur := h; cur != nil; cur = cur.next {
			cur.sealed.Store(true)
		}
	}

	for cur := h; cur != nil; cur = cur.next {
		ok, err := cur.processor.CanHandle(ctx, ev)
		if err != nil {
			return nil, err
		}
		if ok {
			return cur.processor.Process(ctx, ev)
		}
	}
	return ev, nil
}

// Link wraps each processor in a fresh Handler, links them in the given
// order and returns the head. Every call builds new nodes, so two chains
// linked from the same processors share no linkage state.
func Link(processors ...Processor) (*Handler, error) {
	if len(processors) == 0 {
		return nil, ErrEmptyChain
	}

	handlers := make([]*Handler, len(processors))
	for i, p := range processors {
		h, err := NewHandler(p)
		if err != nil {
			return nil, err
		}
		handlers[i] = h
	}
	for i := 0; i < len(handlers)-1; i++ {
		if err := handlers[i].SetNext(handlers[i+1]); err != nil {
			return nil, err
		}
	}
	return handlers[0], nil
}
