package federation

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
)

const DefaultDebounce = 400 * time.Millisecond

var resolverIDs atomic.Int64

// ResolveFallback is shown when a failed resolution carries no server text.
const ResolveFallback = "Could not resolve that account."

type ResolveState int

const (
	Idle ResolveState = iota
	Debouncing
	Resolving
	Resolved
	Failed
)

func (s ResolveState) String() string {
	switch s {
	case Debouncing:
		return "debouncing"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "idle"
}

// ActorSearcher resolves a handle or url into a remote actor.
type ActorSearcher interface {
	SearchActor(ctx context.Context, q string) (*domain.RemoteActor, error)
}

// Resolver turns handle-like input into a remote actor after the input
// has been stable for the debounce delay. Every input change starts a new
// generation; ticks and results of older generations are ignored and
// their requests cancelled.
type Resolver struct {
	id       int64
	searcher ActorSearcher
	delay    time.Duration

	gen    int
	cancel context.CancelFunc

	State      ResolveState
	Query      string
	Actor      *domain.RemoteActor
	Err        string
	NeedsLogin bool
}

type debounceMsg struct {
	owner int64
	gen   int
}

type resolveResultMsg struct {
	owner int64
	gen   int
	actor *domain.RemoteActor
	err   error
}

// ActorResolvedMsg tells the parent to reload its lists so the new actor
// shows up there too.
type ActorResolvedMsg struct {
	Actor domain.RemoteActor
}

func NewResolver(s ActorSearcher, delay time.Duration) Resolver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return Resolver{id: resolverIDs.Add(1), searcher: s, delay: delay}
}

// SetInput feeds the current text of the input field.
func (r Resolver) SetInput(input string, s *Session) (Resolver, tea.Cmd) {
	query := strings.TrimSpace(input)
	if query == r.Query && r.State != Idle {
		return r, nil
	}

	r = r.supersede()
	r.Query = query

	if !IsHandleLike(query) {
		r.Query = ""
		return r, nil
	}
	if !s.Authenticated() {
		r.NeedsLogin = true
		return r, nil
	}

	r.State = Debouncing
	id, gen := r.id, r.gen
	return r, tea.Tick(r.delay, func(time.Time) tea.Msg {
		return debounceMsg{owner: id, gen: gen}
	})
}

// Reset clears the resolver and drops anything in flight.
func (r Resolver) Reset() Resolver {
	r = r.supersede()
	r.Query = ""
	return r
}

func (r Resolver) supersede() Resolver {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.State = Idle
	r.Actor = nil
	r.Err = ""
	r.NeedsLogin = false
	return r
}

func (r Resolver) Update(msg tea.Msg) (Resolver, tea.Cmd) {
	switch msg := msg.(type) {
	case debounceMsg:
		if msg.owner != r.id || msg.gen != r.gen || r.State != Debouncing {
			return r, nil
		}
		r.State = Resolving
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		r.cancel = cancel
		id, gen, q, searcher := r.id, r.gen, r.Query, r.searcher
		return r, func() tea.Msg {
			defer cancel()
			actor, err := searcher.SearchActor(ctx, q)
			return resolveResultMsg{owner: id, gen: gen, actor: actor, err: err}
		}

	case resolveResultMsg:
		if msg.owner != r.id || msg.gen != r.gen {
			return r, nil
		}
		r.cancel = nil
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				log.Printf("Resolve %q failed: %v", r.Query, msg.err)
			}
			r.State = Failed
			r.Err = api.ErrorText(msg.err, ResolveFallback)
			return r, nil
		}
		r.State = Resolved
		r.Actor = msg.actor
		actor := *msg.actor
		return r, func() tea.Msg { return ActorResolvedMsg{Actor: actor} }
	}
	return r, nil
}

// Resolved returns the resolved actor, if any.
func (r Resolver) Resolved() *domain.RemoteActor {
	if r.State != Resolved {
		return nil
	}
	return r.Actor
}
