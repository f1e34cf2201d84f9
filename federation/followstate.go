package federation

import (
	"context"
	"errors"
	"log"
	"maps"

	"github.com/deemkeen/fedcal/domain"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotDelivered means the server accepted a remote follow but could
	// not deliver it to the peer. The actor is not marked followed.
	ErrNotDelivered = errors.New("follow request was not delivered")
	ErrOwnProfile   = errors.New("you can't follow yourself")
	ErrNotLoggedIn  = errors.New("log in to follow accounts")
)

// FollowBackend is the part of the API the reconciler needs.
type FollowBackend interface {
	UserFollowing(ctx context.Context, username string) ([]domain.User, error)
	FollowedActors(ctx context.Context) ([]domain.RemoteActor, error)
	FollowUser(ctx context.Context, username string) error
	UnfollowUser(ctx context.Context, username string) error
	FollowActor(ctx context.Context, actorURI string) (domain.FollowResult, error)
	UnfollowActor(ctx context.Context, actorURI string) error
}

// FollowSets are the viewer's followed local ids and remote actor uris.
// Treat them as immutable; With returns a modified copy.
type FollowSets struct {
	Local  map[string]bool
	Remote map[string]bool
}

func EmptyFollowSets() FollowSets {
	return FollowSets{Local: map[string]bool{}, Remote: map[string]bool{}}
}

func (f FollowSets) IsFollowed(item domain.ProfileItem) bool {
	switch it := item.(type) {
	case domain.LocalItem:
		return f.Local[it.Key()]
	case domain.RemoteItem:
		return f.Remote[it.Key()]
	}
	return false
}

// With returns a copy of f with item's key added or removed.
func (f FollowSets) With(item domain.ProfileItem, followed bool) FollowSets {
	out := FollowSets{Local: maps.Clone(f.Local), Remote: maps.Clone(f.Remote)}
	if out.Local == nil {
		out.Local = map[string]bool{}
	}
	if out.Remote == nil {
		out.Remote = map[string]bool{}
	}

	set := out.Local
	if _, ok := item.(domain.RemoteItem); ok {
		set = out.Remote
	}
	if followed {
		set[item.Key()] = true
	} else {
		delete(set, item.Key())
	}
	return out
}

// IsOwn is true only for the viewer's own local profile.
func IsOwn(item domain.ProfileItem, s *Session) bool {
	local, ok := item.(domain.LocalItem)
	return ok && s.Authenticated() && local.User.Id == s.Viewer.Id
}

// FetchFollowSets loads both sets concurrently. A failing side degrades
// to an empty set; the page keeps working.
func FetchFollowSets(ctx context.Context, b FollowBackend, s *Session) FollowSets {
	sets := EmptyFollowSets()
	if !s.Authenticated() {
		return sets
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sets.Local = fetchLocalFollowing(ctx, b, s)
		return nil
	})
	g.Go(func() error {
		sets.Remote = fetchRemoteFollowing(ctx, b)
		return nil
	})
	_ = g.Wait()
	return sets
}

func fetchLocalFollowing(ctx context.Context, b FollowBackend, s *Session) map[string]bool {
	set := map[string]bool{}
	users, err := b.UserFollowing(ctx, s.Viewer.Username)
	if err != nil {
		log.Printf("Failed to load local following: %v", err)
		return set
	}
	for _, u := range users {
		set[domain.LocalKey(u.Id)] = true
	}
	return set
}

func fetchRemoteFollowing(ctx context.Context, b FollowBackend) map[string]bool {
	set := map[string]bool{}
	actors, err := b.FollowedActors(ctx)
	if err != nil {
		log.Printf("Failed to load remote following: %v", err)
		return set
	}
	for _, a := range actors {
		set[a.Uri] = true
	}
	return set
}

// Follow issues the follow call matching item's kind. A remote follow
// only counts once the server confirms delivery.
func Follow(ctx context.Context, b FollowBackend, item domain.ProfileItem) error {
	switch it := item.(type) {
	case domain.LocalItem:
		return b.FollowUser(ctx, it.User.Username)
	case domain.RemoteItem:
		res, err := b.FollowActor(ctx, it.Actor.Uri)
		if err != nil {
			return err
		}
		if !res.Ok || !res.Delivered {
			return ErrNotDelivered
		}
		return nil
	}
	return nil
}

func Unfollow(ctx context.Context, b FollowBackend, item domain.ProfileItem) error {
	switch it := item.(type) {
	case domain.LocalItem:
		return b.UnfollowUser(ctx, it.User.Username)
	case domain.RemoteItem:
		return b.UnfollowActor(ctx, it.Actor.Uri)
	}
	return nil
}
