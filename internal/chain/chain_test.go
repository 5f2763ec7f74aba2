package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder logs every call made to the processors it builds.
type recorder struct {
	calls []string
}

type recordingProcessor struct {
	name    string
	rec     *recorder
	match   func(Event) (bool, error)
	process func(Event) (any, error)
}

func (p *recordingProcessor) CanHandle(_ context.Context, ev Event) (bool, error) {
	p.rec.calls = append(p.rec.calls, p.name+".can_handle")
	return p.match(ev)
}

func (p *recordingProcessor) Process(_ context.Context, ev Event) (any, error) {
	p.rec.calls = append(p.rec.calls, p.name+".process")
	return p.process(ev)
}

func (r *recorder) typeProcessor(name, typ string) *recordingProcessor {
	return &recordingProcessor{
		name: name,
		rec:  r,
		match: func(ev Event) (bool, error) {
			return ev["type"] == typ, nil
		},
		process: func(ev Event) (any, error) {
			return Event{"handled_by": typ, "payload": ev["payload"]}, nil
		},
	}
}

func (r *recorder) constProcessor(name string, match bool) *recordingProcessor {
	return &recordingProcessor{
		name:    name,
		rec:     r,
		match:   func(Event) (bool, error) { return match, nil },
		process: func(Event) (any, error) { return name, nil },
	}
}

// entries builds the same processors as a linked Handler and as a Chain so
// every behavioural test runs against both forms.
func entries(t *testing.T, procs ...Processor) map[string]Entry {
	t.Helper()

	head, err := Link(procs...)
	require.NoError(t, err)

	b := NewBuilder()
	for i, p := range procs {
		b.Add(fmt.Sprintf("step%d", i+1), p)
	}
	c, err := b.Build()
	require.NoError(t, err)

	return map[string]Entry{"handler": head, "chain": c}
}

func TestTypeRoutingScenario(t *testing.T) {
	for _, form := range []string{"handler", "chain"} {
		t.Run(form, func(t *testing.T) {
			rec := &recorder{}
			e := entries(t, rec.typeProcessor("P1", "A"), rec.typeProcessor("P2", "B"))[form]

			got, err := e.Handle(context.Background(), Event{"type": "B", "payload": 42})
			require.NoError(t, err)

			assert.Equal(t, Event{"handled_by": "B", "payload": 42}, got)
			if diff := cmp.Diff([]string{"P1.can_handle", "P2.can_handle", "P2.process"}, rec.calls); diff != "" {
				t.Errorf("call order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	for _, form := range []string{"handler", "chain"} {
		t.Run(form, func(t *testing.T) {
			rec := &recorder{}
			e := entries(t,
				rec.constProcessor("P1", false),
				rec.constProcessor("P2", true),
				rec.constProcessor("P3", true),
			)[form]

			got, err := e.Handle(context.Background(), Event{"x": 1})
			require.NoError(t, err)

			assert.Equal(t, "P2", got)
			assert.Equal(t, []string{"P1.can_handle", "P2.can_handle", "P2.process"}, rec.calls)
		})
	}
}

func TestPassThroughWhenNothingMatches(t *testing.T) {
	for _, form := range []string{"handler", "chain"} {
		t.Run(form, func(t *testing.T) {
			rec := &recorder{}
			e := entries(t,
				rec.constProcessor("P1", false),
				rec.constProcessor("P2", false),
				rec.constProcessor("P3", false),
			)[form]

			in := Event{"x": 1}
			got, err := e.Handle(context.Background(), in)
			require.NoError(t, err)

			assert.Equal(t, Event{"x": 1}, got)
			assert.Equal(t, []string{"P1.can_handle", "P2.can_handle", "P3.can_handle"}, rec.calls)
		})
	}
}

func TestSingleHandlerTail(t *testing.T) {
	rec := &recorder{}

	miss, err := NewHandler(rec.constProcessor("miss", false))
	require.NoError(t, err)
	got, err := miss.Handle(context.Background(), Event{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, Event{"x": 1}, got)

	hit, err := NewHandler(rec.constProcessor("hit", true))
	require.NoError(t, err)
	got, err = hit.Handle(context.Background(), Event{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "hit", got)

	assert.Equal(t, []string{"miss.can_handle", "hit.can_handle", "hit.process"}, rec.calls)
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name      string
		failing   func(r *recorder) *recordingProcessor
		wantCalls []string
	}{
		{
			name: "can_handle",
			failing: func(r *recorder) *recordingProcessor {
				p := r.constProcessor("P2", true)
				p.match = func(Event) (bool, error) { return false, boom }
				return p
			},
			wantCalls: []string{"P1.can_handle", "P2.can_handle"},
		},
		{
			name: "process",
			failing: func(r *recorder) *recordingProcessor {
				p := r.constProcessor("P2", true)
				p.process = func(Event) (any, error) { return nil, boom }
				return p
			},
			wantCalls: []string{"P1.can_handle", "P2.can_handle", "P2.process"},
		},
	}

	for _, tc := range cases {
		for _, form := range []string{"handler", "chain"} {
			t.Run(tc.name+"/"+form, func(t *testing.T) {
				rec := &recorder{}
				e := entries(t,
					rec.constProcessor("P1", false),
					tc.failing(rec),
					rec.constProcessor("P3", true),
				)[form]

				got, err := e.Handle(context.Background(), Event{})
				assert.Same(t, boom, err)
				assert.Nil(t, got)
				assert.Equal(t, tc.wantCalls, rec.calls)
			})
		}
	}
}

func TestLinkBuildsIndependentChains(t *testing.T) {
	rec := &recorder{}
	procs := []Processor{rec.constProcessor("P1", false), rec.constProcessor("P2", false)}

	first, err := Link(procs...)
	require.NoError(t, err)
	second, err := Link(procs...)
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.NotSame(t, first.Next(), second.Next())

	extra, err := NewHandler(rec.constProcessor("P3", true))
	require.NoError(t, err)
	require.NoError(t, first.Next().SetNext(extra))

	got, err := first.Handle(context.Background(), Event{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "P3", got)

	got, err = second.Handle(context.Background(), Event{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, Event{"x": 1}, got)
	assert.Nil(t, second.Next().Next())
}

func TestBuilderBuildsIndependentChains(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder().Add("a", rec.constProcessor("P1", false))

	first, err := b.Build()
	require.NoError(t, err)

	b.Add("b", rec.constProcessor("P2", true))
	second, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, first.Steps())
	assert.Equal(t, []string{"a", "b"}, second.Steps())

	got, err := first.Handle(context.Background(), Event{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, Event{"x": 1}, got)
}

func TestSetNextRules(t *testing.T) {
	rec := &recorder{}
	newHandler := func(name string) *Handler {
		h, err := NewHandler(rec.constProcessor(name, false))
		require.NoError(t, err)
		return h
	}

	a, b, c := newHandler("a"), newHandler("b"), newHandler("c")

	assert.ErrorIs(t, a.SetNext(nil), ErrNilHandler)
	assert.ErrorIs(t, a.SetNext(a), ErrCycle)

	require.NoError(t, a.SetNext(b))
	assert.ErrorIs(t, a.SetNext(c), ErrNextAlreadySet)

	require.NoError(t, b.SetNext(c))
	assert.ErrorIs(t, c.SetNext(a), ErrCycle)

	_, err := a.Handle(context.Background(), Event{})
	require.NoError(t, err)

	d := newHandler("d")
	assert.ErrorIs(t, c.SetNext(d), ErrSealed)
}

func TestConstructionErrors(t *testing.T) {
	_, err := NewHandler(nil)
	assert.ErrorIs(t, err, ErrNilProcessor)

	var typedNil *FunctionalProcessor
	_, err = NewHandler(typedNil)
	assert.ErrorIs(t, err, ErrNilProcessor)

	_, err = Link(typedNil)
	assert.ErrorIs(t, err, ErrNilProcessor)

	_, err = NewBuilder().Add("typed", typedNil).Build()
	assert.ErrorIs(t, err, ErrNilProcessor)

	_, err = Link()
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = NewBuilder().Build()
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = NewBuilder().Add("x", nil).Build()
	assert.ErrorIs(t, err, ErrNilProcessor)

	_, err = NewBuilder().AddFunc("x", nil, nil).Build()
	assert.ErrorIs(t, err, ErrNilProcessor)

	rec := &recorder{}
	_, err = NewBuilder().
		Add("x", rec.constProcessor("P1", true)).
		Add("x", rec.constProcessor("P2", true)).
		Build()
	assert.ErrorContains(t, err, "duplicate step name")
}

func TestDispatchOutcome(t *testing.T) {
	boom := errors.New("boom")
	c, err := NewBuilder().
		AddFunc("first", Match(FieldEquals("type", "A")), func(context.Context, Event) (any, error) {
			return "a", nil
		}).
		AddFunc("broken", Match(FieldEquals("type", "B")), func(context.Context, Event) (any, error) {
			return nil, boom
		}).
		Build()
	require.NoError(t, err)

	out, err := c.Dispatch(context.Background(), Event{"type": "A"})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Step: "first", Matched: true, Result: "a"}, out)

	out, err = c.Dispatch(context.Background(), Event{"type": "B"})
	assert.Same(t, boom, err)
	assert.Equal(t, Outcome{Step: "broken", Matched: true}, out)

	out, err = c.Dispatch(context.Background(), Event{"type": "C"})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Result: Event{"type": "C"}}, out)
	assert.Equal(t, 2, c.Len())
}

func TestFilters(t *testing.T) {
	newcall := AnyOf(FieldEquals("type", "newcall"), FieldEquals("source", "newcall"))
	assert.True(t, newcall(Event{"type": "newcall"}))
	assert.True(t, newcall(Event{"source": "newcall"}))
	assert.False(t, newcall(Event{"type": "other"}))
	assert.False(t, newcall(Event{}))

	both := AllOf(FieldEquals("type", "a"), FieldEquals("source", "b"))
	assert.True(t, both(Event{"type": "a", "source": "b"}))
	assert.False(t, both(Event{"type": "a"}))
}

func TestDeepChainDoesNotRecurse(t *testing.T) {
	rec := &recorder{}
	procs := make([]Processor, 100000)
	for i := range procs {
		procs[i] = &recordingProcessor{
			name:    "p",
			rec:     &recorder{},
			match:   func(Event) (bool, error) { return false, nil },
			process: func(Event) (any, error) { return nil, nil },
		}
	}
	procs[len(procs)-1] = rec.constProcessor("last", true)

	head, err := Link(procs...)
	require.NoError(t, err)

	got, err := head.Handle(context.Background(), Event{})
	require.NoError(t, err)
	assert.Equal(t, "last", got)
}
