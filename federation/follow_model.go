package federation

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
)

const requestTimeout = 15 * time.Second

var followStateIDs atomic.Int64

// FollowState keeps the viewer's follow sets inside a Bubble Tea update
// loop. Both lists load concurrently; until both arrive IsFollowed may
// under-report. Several FollowStates may share one program; each only
// reacts to its own messages.
type FollowState struct {
	id      int64
	backend FollowBackend
	session *Session

	gen         int
	sets        FollowSets
	localReady  bool
	remoteReady bool
	busy        map[string]bool
}

type localFollowsMsg struct {
	owner int64
	gen   int
	set   map[string]bool
}

type remoteFollowsMsg struct {
	owner int64
	gen   int
	set   map[string]bool
}

type followDoneMsg struct {
	owner  int64
	item   domain.ProfileItem
	follow bool
	err    error
}

// FollowChangedMsg reports a finished follow or unfollow to the parent.
type FollowChangedMsg struct {
	Item     domain.ProfileItem
	Followed bool
	Err      error
}

func NewFollowState(b FollowBackend) FollowState {
	return FollowState{
		id:      followStateIDs.Add(1),
		backend: b,
		session: Anonymous(),
		sets:    EmptyFollowSets(),
		busy:    map[string]bool{},
	}
}

// Load refetches both sets for s. Results from earlier loads are dropped.
func (f FollowState) Load(s *Session) (FollowState, tea.Cmd) {
	f.session = s
	f.gen++
	f.localReady, f.remoteReady = false, false

	if !s.Authenticated() {
		f.sets = EmptyFollowSets()
		f.localReady, f.remoteReady = true, true
		return f, nil
	}

	id, gen, b, snap := f.id, f.gen, f.backend, s.Snapshot()
	loadLocal := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return localFollowsMsg{owner: id, gen: gen, set: fetchLocalFollowing(ctx, b, snap)}
	}
	loadRemote := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return remoteFollowsMsg{owner: id, gen: gen, set: fetchRemoteFollowing(ctx, b)}
	}
	return f, tea.Batch(loadLocal, loadRemote)
}

func (f FollowState) Update(msg tea.Msg) (FollowState, tea.Cmd) {
	switch msg := msg.(type) {
	case localFollowsMsg:
		if msg.owner == f.id && msg.gen == f.gen {
			f.sets = FollowSets{Local: msg.set, Remote: f.sets.Remote}
			f.localReady = true
		}
	case remoteFollowsMsg:
		if msg.owner == f.id && msg.gen == f.gen {
			f.sets = FollowSets{Local: f.sets.Local, Remote: msg.set}
			f.remoteReady = true
		}
	case followDoneMsg:
		if msg.owner != f.id {
			return f, nil
		}
		f.busy = maps.Clone(f.busy)
		delete(f.busy, msg.item.Key())

		changed := FollowChangedMsg{Item: msg.item, Followed: msg.follow, Err: msg.err}
		notify := func() tea.Msg { return changed }
		if msg.err != nil {
			changed.Followed = !msg.follow
			return f, notify
		}

		f.sets = f.sets.With(msg.item, msg.follow)
		var reload tea.Cmd
		f, reload = f.Load(f.session)
		return f, tea.Batch(notify, reload)
	}
	return f, nil
}

// Toggle follows or unfollows item depending on its current state.
func (f FollowState) Toggle(item domain.ProfileItem) (FollowState, tea.Cmd) {
	if f.IsFollowed(item) {
		return f.Unfollow(item)
	}
	return f.Follow(item)
}

func (f FollowState) Follow(item domain.ProfileItem) (FollowState, tea.Cmd) {
	return f.mutate(item, true)
}

func (f FollowState) Unfollow(item domain.ProfileItem) (FollowState, tea.Cmd) {
	return f.mutate(item, false)
}

func (f FollowState) mutate(item domain.ProfileItem, follow bool) (FollowState, tea.Cmd) {
	if !f.session.Authenticated() {
		return f, failed(item, follow, ErrNotLoggedIn)
	}
	if IsOwn(item, f.session) {
		return f, failed(item, follow, ErrOwnProfile)
	}
	key := item.Key()
	if f.busy[key] {
		return f, nil
	}

	f.busy = maps.Clone(f.busy)
	f.busy[key] = true

	id, b := f.id, f.backend
	return f, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var err error
		if follow {
			err = Follow(ctx, b, item)
		} else {
			err = Unfollow(ctx, b, item)
		}
		return followDoneMsg{owner: id, item: item, follow: follow, err: err}
	}
}

func failed(item domain.ProfileItem, follow bool, err error) tea.Cmd {
	return func() tea.Msg {
		return FollowChangedMsg{Item: item, Followed: !follow, Err: err}
	}
}

func (f FollowState) IsFollowed(item domain.ProfileItem) bool {
	return f.sets.IsFollowed(item)
}

func (f FollowState) IsOwn(item domain.ProfileItem) bool {
	return IsOwn(item, f.session)
}

// Busy reports whether a mutation for item is in flight.
func (f FollowState) Busy(item domain.ProfileItem) bool {
	return f.busy[item.Key()]
}

// Ready is true once both follow lists of the current load arrived.
func (f FollowState) Ready() bool {
	return f.localReady && f.remoteReady
}

func (f FollowState) Sets() FollowSets {
	return f.sets
}

func (f FollowState) Session() *Session {
	return f.session
}

// FollowErrorText turns a mutation error into an inline message.
func FollowErrorText(err error, follow bool) string {
	switch err {
	case ErrNotDelivered, ErrOwnProfile, ErrNotLoggedIn:
		return err.Error()
	}
	verb := "unfollow"
	if follow {
		verb = "follow"
	}
	return api.ErrorText(err, fmt.Sprintf("Could not %s, please try again.", verb))
}
