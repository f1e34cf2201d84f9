package middleware

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/deemkeen/fedcal/ui"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/muesli/termenv"
)

// MainTui runs one program per SSH session. deps is shared; the key hash
// of each session is filled in here.
func MainTui(deps common.Deps) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		d := deps
		d.KeyHash = keyHashFrom(s.Context())
		m := ui.NewModel(d, SessionFrom(s.Context()), pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}
