package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/db"
	"github.com/deemkeen/fedcal/domain"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/ui"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/spf13/cobra"
)

// localKeyHash keys the preferences of the local terminal user.
const localKeyHash = "local"

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the TUI in this terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		s, err := session(cmd, client)
		if err != nil {
			return err
		}
		defer s.Close()

		database := db.GetDB()
		defer database.Close()

		deps := common.Deps{
			Client:             client,
			Store:              database,
			KeyHash:            localKeyHash,
			Debounce:           conf.Debounce(),
			RefreshLimit:       conf.Conf.RefreshLimit,
			RefreshMaxAgeHours: conf.Conf.RefreshMaxAgeHours,
		}
		p := tea.NewProgram(ui.NewModel(deps, s, 0, 0), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:     "resolve <handle|url>",
	Aliases: []string{"lookup"},
	Short:   "Resolve a remote account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.TrimSpace(args[0])
		if !federation.IsHandleLike(q) {
			return fmt.Errorf("%q is not a handle or URL", q)
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		s, err := session(cmd, client)
		if err != nil {
			return err
		}
		if !s.Authenticated() {
			return federation.ErrNotLoggedIn
		}

		actor, err := client.WithToken(s.Token).SearchActor(cmd.Context(), q)
		if err != nil {
			return errors.New(api.ErrorText(err, federation.ResolveFallback))
		}
		printProfile(cmd, domain.RemoteItem{Actor: *actor}, federation.EmptyFollowSets())
		return nil
	},
}

var discoverOpts struct {
	query, source, follow, sort string
	hideZero                    bool
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List local and remote accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := federation.DefaultDiscoverOptions()
		opts.Query = discoverOpts.query
		opts.HideZeroEvents = discoverOpts.hideZero

		var err error
		if opts.Source, err = federation.ParseSourceFilter(discoverOpts.source); err != nil {
			return err
		}
		if opts.Follow, err = federation.ParseFollowFilter(discoverOpts.follow); err != nil {
			return err
		}
		if opts.Sort, err = federation.ParseSortOrder(discoverOpts.sort); err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		s, err := session(cmd, client)
		if err != nil {
			return err
		}
		cl := client.WithToken(s.Token)

		dir := federation.FetchDirectory(cmd.Context(), cl, 100)
		follows := federation.FetchFollowSets(cmd.Context(), cl, s)
		if federation.IsHandleLike(opts.Query) {
			if !s.Authenticated() {
				return federation.ErrNotLoggedIn
			}
			actor, err := cl.SearchActor(cmd.Context(), strings.TrimSpace(opts.Query))
			if err != nil {
				return errors.New(api.ErrorText(err, federation.ResolveFallback))
			}
			dir.Resolved = actor
		}

		res := federation.Assemble(dir, follows, s, opts)
		for _, item := range res.Visible {
			printProfile(cmd, item, follows)
		}
		if n := len(res.Hidden); n > 0 {
			cmd.Printf("\n%d accounts without events hidden (--hide-zero=false to show)\n", n)
		}
		return nil
	},
}

func init() {
	f := discoverCmd.Flags()
	f.StringVarP(&discoverOpts.query, "query", "q", "", "search text, handle or profile URL")
	f.StringVar(&discoverOpts.source, "source", "all", "all, local or remote")
	f.StringVar(&discoverOpts.follow, "follow", "all", "all, following or not_following")
	f.StringVar(&discoverOpts.sort, "sort", "recent", "recent, followers or events")
	f.BoolVar(&discoverOpts.hideZero, "hide-zero", true, "hide accounts without events")
}

func printProfile(cmd *cobra.Command, item domain.ProfileItem, follows federation.FollowSets) {
	p := federation.Normalize(item)
	line := fmt.Sprintf("%-40s %-24s %s · %s", p.Handle, p.DisplayName,
		common.FormatCount(p.Followers, "followers"), common.FormatCount(p.Events, "events"))
	if follows.IsFollowed(item) {
		line += " [following]"
	}
	cmd.Println(line)
	if p.Summary != "" {
		cmd.Println("    " + federation.Truncate(p.Summary, 100))
	}
}
