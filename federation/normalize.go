package federation

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deemkeen/fedcal/domain"
	"github.com/microcosm-cc/bluemonday"
)

type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Profile is the render shape shared by local users and remote actors.
// Nil counts are unknown and stay distinct from a known zero.
type Profile struct {
	Key            string `json:"key"`
	Kind           Kind   `json:"kind"`
	Path           string `json:"path"`
	DisplayName    string `json:"displayName"`
	Handle         string `json:"handle"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	AvatarFallback string `json:"avatarFallback"`
	Summary        string `json:"summary,omitempty"`
	Username       string `json:"username"`
	Domain         string `json:"domain,omitempty"`
	Followers      *int   `json:"followers"`
	Following      *int   `json:"following"`
	Events         *int   `json:"events"`
}

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockBreak  = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6])>`)
)

func Normalize(item domain.ProfileItem) Profile {
	switch it := item.(type) {
	case domain.LocalItem:
		u := it.User
		return Profile{
			Key:            it.Key(),
			Kind:           KindLocal,
			Path:           "/profile/" + url.PathEscape(u.Username),
			DisplayName:    displayName(u.DisplayName, u.Username),
			Handle:         "@" + u.Username,
			AvatarURL:      u.AvatarURL,
			AvatarFallback: avatarFallback(u.Username),
			Summary:        StripHTML(u.Bio),
			Username:       u.Username,
			Followers:      u.FollowersCount,
			Following:      u.FollowingCount,
			Events:         u.EventsCount,
		}
	case domain.RemoteItem:
		a := it.Actor
		return Profile{
			Key:            it.Key(),
			Kind:           KindRemote,
			Path:           "/profile/" + url.PathEscape(a.Username+"@"+a.Domain),
			DisplayName:    displayName(a.DisplayName, a.Username),
			Handle:         fmt.Sprintf("@%s@%s", a.Username, a.Domain),
			AvatarURL:      a.IconURL,
			AvatarFallback: avatarFallback(a.Username),
			Summary:        StripHTML(a.Summary),
			Username:       a.Username,
			Domain:         a.Domain,
			Followers:      a.FollowersCount,
			Following:      a.FollowingCount,
			Events:         a.EventsCount,
		}
	}
	return Profile{}
}

func displayName(name, username string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return username
}

func avatarFallback(username string) string {
	r, _ := utf8.DecodeRuneInString(username)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// StripHTML reduces a bio or summary to plain text safe for truncation.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = blockBreak.ReplaceAllString(s, " ")
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes, adding an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
