package federation

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/fedcal/domain"
)

// ActorRefresher asks the server to refetch stale remote actors.
type ActorRefresher interface {
	RefreshActors(ctx context.Context, limit, maxAgeHours int) (domain.RefreshResult, error)
}

// RefreshStale is best effort: failures are logged and reported as no
// change.
func RefreshStale(ctx context.Context, r ActorRefresher, limit, maxAgeHours int) bool {
	res, err := r.RefreshActors(ctx, limit, maxAgeHours)
	if err != nil {
		log.Printf("Actor refresh failed: %v", err)
		return false
	}
	return res.Changed > 0
}

// ActorsRefreshedMsg is only sent when the refresh changed something.
type ActorsRefreshedMsg struct{}

// RefreshCmd runs RefreshStale in the background of a Bubble Tea program.
func RefreshCmd(r ActorRefresher, limit, maxAgeHours int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if RefreshStale(ctx, r, limit, maxAgeHours) {
			return ActorsRefreshedMsg{}
		}
		return nil
	}
}
