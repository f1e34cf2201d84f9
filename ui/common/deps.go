package common

import (
	"log"
	"time"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
)

// Store persists key links and preferences. It may be nil, in which case
// nothing survives the session.
type Store interface {
	CreateKeyLink(keyHash, token, username string) error
	DeleteKeyLink(keyHash string) error
	ReadPreferences(keyHash string) (domain.Preferences, error)
	UpdatePreferences(prefs domain.Preferences) error
}

// Deps is what every screen needs from the outside world.
type Deps struct {
	Client   *api.Client
	Store    Store
	KeyHash  string
	Debounce time.Duration

	RefreshLimit       int
	RefreshMaxAgeHours int
	RefreshEvery       time.Duration
}

// ClientFor returns an api client of its own carrying token. An empty
// token yields an anonymous client.
func (d Deps) ClientFor(token string) *api.Client {
	return d.Client.WithToken(token)
}

func (d Deps) ReadPreferences() domain.Preferences {
	if d.Store == nil || d.KeyHash == "" {
		return domain.DefaultPreferences(d.KeyHash)
	}
	prefs, err := d.Store.ReadPreferences(d.KeyHash)
	if err != nil {
		log.Printf("Failed to read preferences: %v", err)
	}
	return prefs
}

func (d Deps) SavePreferences(prefs domain.Preferences) {
	if d.Store == nil || d.KeyHash == "" {
		return
	}
	prefs.KeyHash = d.KeyHash
	if err := d.Store.UpdatePreferences(prefs); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}
