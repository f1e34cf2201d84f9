package common

import (
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
)

type SessionState uint

const (
	DiscoverView SessionState = iota
	FollowingView
	ProfileView
	LoginView
)

// OpenProfileMsg switches to the profile view for Item.
type OpenProfileMsg struct {
	Item domain.ProfileItem
}

// CloseProfileMsg returns from the profile view.
type CloseProfileMsg struct{}

// SessionChangedMsg is sent after login or logout.
type SessionChangedMsg struct {
	Session *federation.Session
}
