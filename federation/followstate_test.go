package federation

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/domain"
)

// settle feeds every message produced by cmd back into f until nothing
// is left and returns the FollowChangedMsgs seen on the way.
func settle(f FollowState, cmd tea.Cmd) (FollowState, []FollowChangedMsg) {
	var changed []FollowChangedMsg
	queue := drain(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		if c, ok := msg.(FollowChangedMsg); ok {
			changed = append(changed, c)
		}
		var next tea.Cmd
		f, next = f.Update(msg)
		queue = append(queue, drain(next)...)
	}
	return f, changed
}

func TestFetchFollowSets(t *testing.T) {
	f := newFixture(t)
	f.srv.SetFollowing("alice", "bob")
	f.srv.SetFollowingActor("alice", f.carol.Uri)

	sets := FetchFollowSets(context.Background(), f.client, f.session)
	if !sets.IsFollowed(domain.LocalItem{User: f.bob}) {
		t.Error("Expected bob to be followed")
	}
	if !sets.IsFollowed(domain.RemoteItem{Actor: f.carol}) {
		t.Error("Expected carol to be followed")
	}

	anon := FetchFollowSets(context.Background(), f.client, Anonymous())
	if len(anon.Local) != 0 || len(anon.Remote) != 0 {
		t.Errorf("Expected empty sets without a viewer, got %+v", anon)
	}
}

func TestFetchFollowSetsDegrades(t *testing.T) {
	f := newFixture(t)
	f.srv.SetFollowing("alice", "bob")
	f.srv.Fail["GET /federation/following"] = http.StatusInternalServerError

	sets := FetchFollowSets(context.Background(), f.client, f.session)
	if !sets.IsFollowed(domain.LocalItem{User: f.bob}) {
		t.Error("Local set should survive a failing remote list")
	}
	if len(sets.Remote) != 0 {
		t.Errorf("Expected empty remote set, got %v", sets.Remote)
	}
}

func TestFollowSetsWithIsCopyOnWrite(t *testing.T) {
	base := EmptyFollowSets()
	item := domain.RemoteItem{Actor: domain.RemoteActor{Uri: "https://r/a"}}

	next := base.With(item, true)
	if base.IsFollowed(item) {
		t.Error("With must not modify the receiver")
	}
	if !next.IsFollowed(item) {
		t.Error("Expected item in the copy")
	}
	if next.With(item, false).IsFollowed(item) {
		t.Error("Expected item removed")
	}
}

func TestIsOwn(t *testing.T) {
	f := newFixture(t)
	if !IsOwn(domain.LocalItem{User: f.alice}, f.session) {
		t.Error("Expected alice to be own profile")
	}
	if IsOwn(domain.LocalItem{User: f.bob}, f.session) {
		t.Error("bob is not alice")
	}
	if IsOwn(domain.LocalItem{User: f.alice}, Anonymous()) {
		t.Error("Nothing is own without a viewer")
	}
	if IsOwn(domain.RemoteItem{Actor: f.carol}, f.session) {
		t.Error("Remote actors are never own")
	}
}

func TestFollowStateRoundTrip(t *testing.T) {
	f := newFixture(t)
	dave := domain.RemoteActor{Uri: "https://remote.example/users/dave", Username: "dave", Domain: "remote.example"}
	f.srv.Actors = append(f.srv.Actors, dave)
	f.srv.SetFollowingActor("alice", dave.Uri)

	fs, cmd := NewFollowState(f.client).Load(f.session)
	fs, _ = settle(fs, cmd)
	if !fs.Ready() {
		t.Fatal("Expected follow state to be ready")
	}
	before := fs.Sets()
	if !fs.IsFollowed(domain.RemoteItem{Actor: dave}) {
		t.Fatal("Expected dave to be followed after load")
	}

	for _, item := range []domain.ProfileItem{domain.LocalItem{User: f.bob}, domain.RemoteItem{Actor: f.carol}} {
		var changed []FollowChangedMsg
		fs, cmd = fs.Toggle(item)
		if !fs.Busy(item) {
			t.Errorf("Expected %s to be busy", item.Key())
		}
		fs, changed = settle(fs, cmd)
		if len(changed) != 1 || changed[0].Err != nil || !changed[0].Followed {
			t.Fatalf("Unexpected follow result %+v", changed)
		}
		if !fs.IsFollowed(item) || fs.Busy(item) {
			t.Errorf("Expected %s followed and idle", item.Key())
		}

		fs, cmd = fs.Toggle(item)
		fs, changed = settle(fs, cmd)
		if len(changed) != 1 || changed[0].Err != nil || changed[0].Followed {
			t.Fatalf("Unexpected unfollow result %+v", changed)
		}
	}

	if !reflect.DeepEqual(before, fs.Sets()) {
		t.Errorf("Round trip changed the sets: %+v vs %+v", before, fs.Sets())
	}
}

func TestFollowStateBusyKey(t *testing.T) {
	f := newFixture(t)
	fs, cmd := NewFollowState(f.client).Load(f.session)
	fs, _ = settle(fs, cmd)

	bob := domain.LocalItem{User: f.bob}
	fs, first := fs.Follow(bob)
	if first == nil {
		t.Fatal("Expected a follow command")
	}
	fs, second := fs.Follow(bob)
	if second != nil {
		t.Error("Expected a second follow of a busy item to be refused")
	}

	carol := domain.RemoteItem{Actor: f.carol}
	_, other := fs.Follow(carol)
	if other == nil {
		t.Error("Other items should stay actionable")
	}

	settle(fs, first)
	if got := f.srv.Calls("POST /users/bob/follow"); got != 1 {
		t.Errorf("Expected exactly 1 follow call, got %d", got)
	}
}

func TestFollowStateUndelivered(t *testing.T) {
	f := newFixture(t)
	f.srv.Undelivered[f.carol.Uri] = true
	fs, cmd := NewFollowState(f.client).Load(f.session)
	fs, _ = settle(fs, cmd)

	carol := domain.RemoteItem{Actor: f.carol}
	fs, cmd = fs.Follow(carol)
	fs, changed := settle(fs, cmd)

	if len(changed) != 1 || !errors.Is(changed[0].Err, ErrNotDelivered) {
		t.Fatalf("Expected ErrNotDelivered, got %+v", changed)
	}
	if changed[0].Followed {
		t.Error("Followed should report the unchanged state")
	}
	if fs.IsFollowed(carol) || fs.Busy(carol) {
		t.Error("Undelivered follow must not be marked")
	}
}

func TestFollowStateFailureLeavesState(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail["POST /users/bob/follow"] = http.StatusForbidden
	fs, cmd := NewFollowState(f.client).Load(f.session)
	fs, _ = settle(fs, cmd)

	bob := domain.LocalItem{User: f.bob}
	fs, cmd = fs.Follow(bob)
	fs, changed := settle(fs, cmd)
	if len(changed) != 1 || changed[0].Err == nil {
		t.Fatalf("Expected a failure, got %+v", changed)
	}
	if got := FollowErrorText(changed[0].Err, true); got != "injected failure" {
		t.Errorf("Expected server text, got %q", got)
	}
	if fs.IsFollowed(bob) {
		t.Error("Failed follow must not be marked")
	}
}

func TestFollowStateRefusesOwnAndAnonymous(t *testing.T) {
	f := newFixture(t)
	fs, cmd := NewFollowState(f.client).Load(f.session)
	fs, _ = settle(fs, cmd)

	_, changed := settle(fs.Follow(domain.LocalItem{User: f.alice}))
	if len(changed) != 1 || changed[0].Err != ErrOwnProfile {
		t.Errorf("Expected ErrOwnProfile, got %+v", changed)
	}

	anon, cmd := NewFollowState(f.client).Load(Anonymous())
	if cmd != nil {
		t.Error("Anonymous load should not hit the network")
	}
	if !anon.Ready() {
		t.Error("Anonymous state should be ready immediately")
	}
	_, changed = settle(anon.Follow(domain.LocalItem{User: f.bob}))
	if len(changed) != 1 || changed[0].Err != ErrNotLoggedIn {
		t.Errorf("Expected ErrNotLoggedIn, got %+v", changed)
	}
	if got := f.srv.Calls("POST /users/bob/follow"); got != 0 {
		t.Errorf("Expected no follow calls, got %d", got)
	}
}

func TestFollowStateDropsStaleLoads(t *testing.T) {
	f := newFixture(t)
	f.srv.SetFollowing("alice", "bob")

	fs, stale := NewFollowState(f.client).Load(f.session)
	fs, _ = fs.Load(Anonymous())
	fs, _ = settle(fs, stale)

	if fs.IsFollowed(domain.LocalItem{User: f.bob}) {
		t.Error("Results of a superseded load must be ignored")
	}
}

func TestFollowStateLoadSurvivesClose(t *testing.T) {
	f := newFixture(t)
	f.srv.SetFollowing("alice", "bob")

	fs, load := NewFollowState(f.client).Load(f.session)
	// logout lands before the load commands run
	f.session.Close()
	fs, _ = settle(fs, load)

	if !fs.IsFollowed(domain.LocalItem{User: f.bob}) {
		t.Error("Expected the load to use the viewer it was started for")
	}
}
