package domain

import "github.com/google/uuid"

// RemoteActor is a profile discovered on a federated peer server.
// Uri is the only stable identity across requests.
type RemoteActor struct {
	Uri            string `json:"uri"`
	Username       string `json:"username"`
	Domain         string `json:"domain"`
	DisplayName    string `json:"displayName,omitempty"`
	Summary        string `json:"summary,omitempty"`
	IconURL        string `json:"iconUrl,omitempty"`
	FollowersCount *int   `json:"followersCount"`
	FollowingCount *int   `json:"followingCount"`
	EventsCount    *int   `json:"eventsCount"`
}

// FollowResult is the server reply to a remote follow.
type FollowResult struct {
	Ok        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// RefreshResult is the server reply to a staleness refresh.
type RefreshResult struct {
	Refreshed int `json:"refreshed"`
	Changed   int `json:"changed"`
}

// ProfileItem is either a LocalItem or a RemoteItem.
type ProfileItem interface {
	// Key is the local user id or the remote actor uri.
	Key() string
	profileItem()
}

type LocalItem struct {
	User User
}

type RemoteItem struct {
	Actor RemoteActor
}

func (i LocalItem) Key() string  { return i.User.Id.String() }
func (i RemoteItem) Key() string { return i.Actor.Uri }

func (LocalItem) profileItem()  {}
func (RemoteItem) profileItem() {}

// LocalKey is the follow-set key for a local user id.
func LocalKey(id uuid.UUID) string {
	return id.String()
}
