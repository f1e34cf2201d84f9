package web

import (
	"context"
	"fmt"
	"log"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/util"
	"github.com/gorilla/feeds"
	"github.com/patrickmn/go-cache"
)

// FeedSource is the part of the API the feeds are built from.
type FeedSource interface {
	GetUser(ctx context.Context, username string) (*domain.User, error)
	UserEvents(ctx context.Context, username string) ([]domain.Event, error)
}

// Feeds renders a user's events as RSS and iCalendar. Rendered
// documents are cached for five minutes.
type Feeds struct {
	source  FeedSource
	baseURL string
	cache   *cache.Cache
}

func NewFeeds(source FeedSource, baseURL string) *Feeds {
	return &Feeds{
		source:  source,
		baseURL: baseURL,
		cache:   cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (f *Feeds) load(ctx context.Context, username string) (*domain.User, []domain.Event, error) {
	user, err := f.source.GetUser(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("error retrieving user %s: %w", username, err)
	}
	events, err := f.source.UserEvents(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("error retrieving events of %s: %w", username, err)
	}
	return user, events, nil
}

func (f *Feeds) cached(key string, render func() (string, error)) (string, error) {
	if doc, ok := f.cache.Get(key); ok {
		return doc.(string), nil
	}
	doc, err := render()
	if err != nil {
		return "", err
	}
	f.cache.SetDefault(key, doc)
	return doc, nil
}

func (f *Feeds) profileLink(username string) string {
	return fmt.Sprintf("%s/profile/%s", f.baseURL, username)
}

// RSS returns the events of username as an RSS 2.0 document.
func (f *Feeds) RSS(ctx context.Context, username string) (string, error) {
	return f.cached("rss:"+username, func() (string, error) {
		user, events, err := f.load(ctx, username)
		if err != nil {
			log.Printf("Could not build feed for %s: %v", username, err)
			return "", err
		}

		name := user.DisplayName
		if name == "" {
			name = user.Username
		}
		feed := &feeds.Feed{
			Title:       fmt.Sprintf("Events - %s", name),
			Link:        &feeds.Link{Href: f.profileLink(user.Username)},
			Description: user.Bio,
			Author:      &feeds.Author{Name: user.Username},
			Created:     time.Now(),
		}

		for _, e := range events {
			link := e.URL
			if link == "" {
				link = fmt.Sprintf("%s/events/%s", f.baseURL, e.Id)
			}
			description := e.StartTime.Format(util.DateTimeFormat())
			if e.Location != "" {
				description += " @ " + e.Location
			}
			feed.Items = append(feed.Items, &feeds.Item{
				Id:          e.Id.String(),
				Title:       e.Title,
				Link:        &feeds.Link{Href: link},
				Description: description,
				Content:     e.Description,
				Author:      &feeds.Author{Name: user.Username},
				Created:     e.StartTime,
			})
		}
		return feed.ToRss()
	})
}

// ICS returns the events of username as an iCalendar document.
// Recurring events carry their RRULE.
func (f *Feeds) ICS(ctx context.Context, username string) (string, error) {
	return f.cached("ics:"+username, func() (string, error) {
		_, events, err := f.load(ctx, username)
		if err != nil {
			log.Printf("Could not build calendar for %s: %v", username, err)
			return "", err
		}

		cal := ics.NewCalendar()
		cal.SetMethod(ics.MethodPublish)
		cal.SetProductId("-//fedcal//" + util.GetVersion() + "//EN")

		now := time.Now()
		for _, e := range events {
			ev := cal.AddEvent(e.Id.String())
			ev.SetDtStampTime(now)
			ev.SetStartAt(e.StartTime)
			if e.EndTime != nil {
				ev.SetEndAt(*e.EndTime)
			}
			ev.SetSummary(e.Title)
			if e.Description != "" {
				ev.SetDescription(e.Description)
			}
			if e.Location != "" {
				ev.SetLocation(e.Location)
			}
			if e.URL != "" {
				ev.SetURL(e.URL)
			}
			if e.Recurrence != "" {
				ev.AddRrule(e.Recurrence)
			}
		}
		return cal.Serialize(), nil
	})
}

var _ FeedSource = (*api.Client)(nil)
