package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	apiTimeout   = 15 * time.Second
	discoverSize = 100
)

// profileView is a normalized profile plus the viewer's relation to it.
type profileView struct {
	federation.Profile
	IsFollowing bool `json:"isFollowing"`
	IsOwn       bool `json:"isOwn"`
}

type discoverResponse struct {
	Visible    []profileView `json:"visible"`
	Hidden     []profileView `json:"hidden"`
	NeedsLogin bool          `json:"needsLogin,omitempty"`
	ResolveErr string        `json:"resolveError,omitempty"`
}

type followRequest struct {
	Username string `json:"username"`
	ActorUri string `json:"actorUri"`
}

func (r followRequest) item() (domain.ProfileItem, bool) {
	switch {
	case r.ActorUri != "":
		return domain.RemoteItem{Actor: domain.RemoteActor{Uri: r.ActorUri}}, true
	case r.Username != "":
		return domain.LocalItem{User: domain.User{Username: r.Username}}, true
	}
	return nil, false
}

func itemKind(item domain.ProfileItem) string {
	if _, ok := item.(domain.RemoteItem); ok {
		return "remote"
	}
	return "local"
}

func toViews(items []domain.ProfileItem, follows federation.FollowSets, s *federation.Session) []profileView {
	views := make([]profileView, 0, len(items))
	for _, item := range items {
		views = append(views, profileView{
			Profile:     federation.Normalize(item),
			IsFollowing: follows.IsFollowed(item),
			IsOwn:       federation.IsOwn(item, s),
		})
	}
	return views
}

func discoverOptions(c *gin.Context) (federation.DiscoverOptions, error) {
	opts := federation.DefaultDiscoverOptions()
	opts.Query = c.Query("q")

	var err error
	if opts.Source, err = federation.ParseSourceFilter(c.Query("source")); err != nil {
		return opts, err
	}
	if opts.Follow, err = federation.ParseFollowFilter(c.Query("follow")); err != nil {
		return opts, err
	}
	if opts.Sort, err = federation.ParseSortOrder(c.Query("sort")); err != nil {
		return opts, err
	}
	if v := c.Query("hideZero"); v != "" {
		if opts.HideZeroEvents, err = strconv.ParseBool(v); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// HandleDiscover assembles the unified list. A handle-like query is
// resolved right away; clients debounce on their side.
func HandleDiscover(client *api.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := discoverOptions(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s := viewer(c)
		cl := client.WithToken(s.Token)
		ctx, cancel := context.WithTimeout(c.Request.Context(), apiTimeout)
		defer cancel()

		var (
			resp       discoverResponse
			dir        federation.Directory
			follows    federation.FollowSets
			resolved   *domain.RemoteActor
			resolveErr error
		)
		var g errgroup.Group
		g.Go(func() error {
			dir = federation.FetchDirectory(ctx, cl, discoverSize)
			return nil
		})
		g.Go(func() error {
			follows = federation.FetchFollowSets(ctx, cl, s)
			return nil
		})
		if federation.IsHandleLike(opts.Query) {
			if !s.Authenticated() {
				resp.NeedsLogin = true
			} else {
				g.Go(func() error {
					resolved, resolveErr = resolve(ctx, cl, opts.Query)
					return nil
				})
			}
		}
		_ = g.Wait()
		if resolveErr != nil {
			if errors.Is(resolveErr, api.ErrUnauthorized) {
				revokeViewer(c)
			}
			resp.ResolveErr = api.ErrorText(resolveErr, federation.ResolveFallback)
		} else {
			dir.Resolved = resolved
		}

		res := federation.Assemble(dir, follows, s, opts)
		resp.Visible = toViews(res.Visible, follows, s)
		resp.Hidden = toViews(res.Hidden, follows, s)
		c.JSON(http.StatusOK, resp)
	}
}

func resolve(ctx context.Context, cl *api.Client, q string) (*domain.RemoteActor, error) {
	actor, err := cl.SearchActor(ctx, q)
	if err != nil {
		resolutionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	resolutionsTotal.WithLabelValues("resolved").Inc()
	return actor, nil
}

// HandleResolve looks up one handle or url.
func HandleResolve(client *api.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		if !federation.IsHandleLike(q) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Not a handle or URL"})
			return
		}
		s := viewer(c)
		if !s.Authenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Log in to look up remote accounts."})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), apiTimeout)
		defer cancel()
		actor, err := resolve(ctx, client.WithToken(s.Token), q)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": api.ErrorText(err, federation.ResolveFallback)})
			return
		}
		item := domain.RemoteItem{Actor: *actor}
		c.JSON(http.StatusOK, gin.H{"profile": federation.Normalize(item)})
	}
}

// HandleFollow follows or unfollows the account named in the body.
func HandleFollow(client *api.Client, follow bool) gin.HandlerFunc {
	action := "unfollow"
	if follow {
		action = "follow"
	}

	return func(c *gin.Context) {
		s := viewer(c)
		if !s.Authenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": federation.ErrNotLoggedIn.Error()})
			return
		}

		var req followRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		item, ok := req.item()
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or actorUri required"})
			return
		}
		if local, isLocal := item.(domain.LocalItem); isLocal && local.User.Username == s.Viewer.Username {
			c.JSON(http.StatusBadRequest, gin.H{"error": federation.ErrOwnProfile.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), apiTimeout)
		defer cancel()
		cl := client.WithToken(s.Token)

		var err error
		if follow {
			err = federation.Follow(ctx, cl, item)
		} else {
			err = federation.Unfollow(ctx, cl, item)
		}
		if err != nil {
			followMutationsTotal.WithLabelValues(action, itemKind(item), "failed").Inc()
			log.Printf("%s of %s failed: %v", action, item.Key(), err)
			status := statusOf(err)
			if errors.Is(err, federation.ErrNotDelivered) {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": federation.FollowErrorText(err, follow)})
			return
		}

		followMutationsTotal.WithLabelValues(action, itemKind(item), "ok").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true, "following": follow})
	}
}

// statusOf passes upstream client errors through and maps everything
// else to 502.
func statusOf(err error) int {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	}
	return http.StatusBadGateway
}
