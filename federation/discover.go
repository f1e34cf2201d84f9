package federation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/deemkeen/fedcal/domain"
	"golang.org/x/sync/errgroup"
)

type SourceFilter string

const (
	SourceAll    SourceFilter = "all"
	SourceLocal  SourceFilter = "local"
	SourceRemote SourceFilter = "remote"
)

type FollowFilter string

const (
	FollowAll          FollowFilter = "all"
	FollowFollowing    FollowFilter = "following"
	FollowNotFollowing FollowFilter = "not_following"
)

type SortOrder string

const (
	SortRecent    SortOrder = "recent"
	SortFollowers SortOrder = "followers"
	SortEvents    SortOrder = "events"
)

func ParseSourceFilter(s string) (SourceFilter, error) {
	switch f := SourceFilter(s); f {
	case SourceAll, SourceLocal, SourceRemote:
		return f, nil
	case "":
		return SourceAll, nil
	}
	return "", fmt.Errorf("unknown source filter %q", s)
}

func ParseFollowFilter(s string) (FollowFilter, error) {
	switch f := FollowFilter(s); f {
	case FollowAll, FollowFollowing, FollowNotFollowing:
		return f, nil
	case "":
		return FollowAll, nil
	}
	return "", fmt.Errorf("unknown follow filter %q", s)
}

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case SortRecent, SortFollowers, SortEvents:
		return o, nil
	case "":
		return SortRecent, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Next cycles through the filters, for key bindings.
func (f SourceFilter) Next() SourceFilter {
	switch f {
	case SourceAll:
		return SourceLocal
	case SourceLocal:
		return SourceRemote
	}
	return SourceAll
}

func (f FollowFilter) Next() FollowFilter {
	switch f {
	case FollowAll:
		return FollowFollowing
	case FollowFollowing:
		return FollowNotFollowing
	}
	return FollowAll
}

func (o SortOrder) Next() SortOrder {
	switch o {
	case SortRecent:
		return SortFollowers
	case SortFollowers:
		return SortEvents
	}
	return SortRecent
}

type DiscoverOptions struct {
	Query          string
	Source         SourceFilter
	Follow         FollowFilter
	Sort           SortOrder
	HideZeroEvents bool
}

func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Source:         SourceAll,
		Follow:         FollowAll,
		Sort:           SortRecent,
		HideZeroEvents: true,
	}
}

// Directory is the raw material of the discover list. Users and Actors
// are fetched separately; Resolved is the resolver's latest result.
type Directory struct {
	Users    []domain.User
	Actors   []domain.RemoteActor
	Resolved *domain.RemoteActor
}

// DiscoverResult splits the list into what is shown and the collapsed
// bucket of accounts known to have no events.
type DiscoverResult struct {
	Visible []domain.ProfileItem
	Hidden  []domain.ProfileItem
}

// Assemble merges, filters and sorts the directory for display.
func Assemble(dir Directory, follows FollowSets, s *Session, opts DiscoverOptions) DiscoverResult {
	var candidates []domain.ProfileItem
	if IsHandleLike(opts.Query) {
		if dir.Resolved != nil {
			candidates = []domain.ProfileItem{domain.RemoteItem{Actor: *dir.Resolved}}
		}
	} else {
		candidates = Merge(dir)
		if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
			candidates = filter(candidates, func(item domain.ProfileItem) bool {
				return matchesQuery(Normalize(item), q)
			})
		}
	}

	candidates = filter(candidates, func(item domain.ProfileItem) bool {
		return matchesSource(item, opts.Source)
	})

	if s.Authenticated() && opts.Follow != FollowAll && opts.Follow != "" {
		want := opts.Follow == FollowFollowing
		candidates = filter(candidates, func(item domain.ProfileItem) bool {
			return follows.IsFollowed(item) == want
		})
	}

	SortItems(candidates, opts.Sort)

	var res DiscoverResult
	for _, item := range candidates {
		if opts.HideZeroEvents && knownZeroEvents(item) {
			res.Hidden = append(res.Hidden, item)
			continue
		}
		res.Visible = append(res.Visible, item)
	}
	return res
}

// Merge lists local users, then remote actors, then the resolved actor,
// keeping the first entry per actor uri.
func Merge(dir Directory) []domain.ProfileItem {
	items := make([]domain.ProfileItem, 0, len(dir.Users)+len(dir.Actors)+1)
	for _, u := range dir.Users {
		items = append(items, domain.LocalItem{User: u})
	}

	seen := make(map[string]bool, len(dir.Actors)+1)
	addActor := func(a domain.RemoteActor) {
		if a.Uri == "" || seen[a.Uri] {
			return
		}
		seen[a.Uri] = true
		items = append(items, domain.RemoteItem{Actor: a})
	}
	for _, a := range dir.Actors {
		addActor(a)
	}
	if dir.Resolved != nil {
		addActor(*dir.Resolved)
	}
	return items
}

func filter(items []domain.ProfileItem, keep func(domain.ProfileItem) bool) []domain.ProfileItem {
	out := items[:0:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func matchesQuery(p Profile, q string) bool {
	for _, field := range []string{p.DisplayName, p.Username, p.Domain, p.Handle} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func matchesSource(item domain.ProfileItem, f SourceFilter) bool {
	switch item.(type) {
	case domain.LocalItem:
		return f != SourceRemote
	case domain.RemoteItem:
		return f != SourceLocal
	}
	return false
}

func knownZeroEvents(item domain.ProfileItem) bool {
	events := Normalize(item).Events
	return events != nil && *events == 0
}

// SortItems orders items in place. Recent keeps insertion order; unknown
// counts sort as -1, after any known count.
func SortItems(items []domain.ProfileItem, order SortOrder) {
	var count func(Profile) *int
	switch order {
	case SortFollowers:
		count = func(p Profile) *int { return p.Followers }
	case SortEvents:
		count = func(p Profile) *int { return p.Events }
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		return countKey(count(Normalize(items[i]))) > countKey(count(Normalize(items[j])))
	})
}

func countKey(c *int) int {
	if c == nil {
		return -1
	}
	return *c
}

// DirectoryBackend lists the two identity spaces.
type DirectoryBackend interface {
	SearchUsers(ctx context.Context, q string, limit int) ([]domain.User, error)
	KnownActors(ctx context.Context, limit int) ([]domain.RemoteActor, error)
}

// FetchDirectory loads local users and known actors concurrently. A
// failing side degrades to an empty list.
func FetchDirectory(ctx context.Context, b DirectoryBackend, limit int) Directory {
	var dir Directory
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := b.SearchUsers(ctx, "", limit)
		if err != nil {
			log.Printf("Failed to load local users: %v", err)
			return nil
		}
		dir.Users = users
		return nil
	})
	g.Go(func() error {
		actors, err := b.KnownActors(ctx, limit)
		if err != nil {
			log.Printf("Failed to load remote actors: %v", err)
			return nil
		}
		dir.Actors = actors
		return nil
	})
	_ = g.Wait()
	return dir
}
