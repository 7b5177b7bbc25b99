package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ulpatch/ulpatch/internal/opevent"
	"github.com/ulpatch/ulpatch/internal/ui/colorize"
)

// runStatusView blocks in a bubbletea program rendering the live
// opevent.History as a scrolling table, until the user quits it (q,
// esc, or ctrl+c). It does not touch the patch itself; the caller removes
// the patch as soon as this returns, so closing the view takes the place
// of waiting for SIGINT/SIGTERM.
func runStatusView(history *opevent.History) {
	p := tea.NewProgram(newStatusModel(history))
	_, _ = p.Run()
}

type tickMsg time.Time

type statusModel struct {
	history *opevent.History
	tbl     table.Model
}

func newStatusModel(history *opevent.History) statusModel {
	columns := []table.Column{
		{Title: "time", Width: 12},
		{Title: "pid", Width: 8},
		{Title: "phase", Width: 12},
		{Title: "detail", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(nil),
		table.WithFocused(false),
		table.WithHeight(15),
	)
	style := table.DefaultStyles()
	style.Header = style.Header.Bold(true).Foreground(lipgloss.Color("#ffc800"))
	style.Selected = style.Selected.Foreground(lipgloss.Color("#ffffff"))
	t.SetStyles(style)

	return statusModel{history: history, tbl: t}
}

func (m statusModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.tbl.SetRows(m.rows())
		return m, tick()
	}
	return m, nil
}

func (m statusModel) rows() []table.Row {
	events := m.history.Recent(200)
	rows := make([]table.Row, 0, len(events))
	for _, e := range events {
		rows = append(rows, table.Row{
			e.Timestamp.Format("15:04:05.000"),
			fmt.Sprintf("%d", e.PID),
			colorize.Tag(e.PhaseTag()),
			colorize.Detail(e.Detail),
		})
	}
	return rows
}

func (m statusModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render("ultask status — q to close")
	return header + "\n" + m.tbl.View() + "\n"
}
