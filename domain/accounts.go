package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an account hosted by this instance's own backend.
// Counts are nil when the API did not report them.
type User struct {
	Id             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"displayName,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	FollowersCount *int      `json:"followersCount"`
	FollowingCount *int      `json:"followingCount"`
	EventsCount    *int      `json:"eventsCount"`
	IsFollowing    bool      `json:"isFollowing,omitempty"`
}

func (u *User) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tUsername: %s \n\tDisplayName: %s)", u.Id, u.Username, u.DisplayName)
}

// KeyLink ties an SSH public key to an API token so SSH sessions
// start out authenticated.
type KeyLink struct {
	Id        uuid.UUID
	KeyHash   string
	Token     string
	Username  string
	CreatedAt time.Time
}

// Preferences are per-viewer display settings.
type Preferences struct {
	KeyHash        string
	HideZeroEvents bool
}

// DefaultPreferences hides accounts without events.
func DefaultPreferences(keyHash string) Preferences {
	return Preferences{KeyHash: keyHash, HideZeroEvents: true}
}

// Count returns a pointer to n, for building counts in literals.
func Count(n int) *int {
	return &n
}
