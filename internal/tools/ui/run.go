package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	detailStyle = lipgloss.NewStyle().PaddingLeft(2)
)

type finishedMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type task struct {
	title   string
	timeout time.Duration
	action  func(context.Context) ([]string, error)
	cancel  context.CancelFunc
	started time.Time
	now     time.Time
	result  *finishedMsg
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (t *task) Init() tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	t.cancel = cancel
	run := func() tea.Msg {
		details, err := t.action(ctx)
		return finishedMsg{details: details, err: err}
	}
	return tea.Batch(run, tick())
}

func (t *task) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			t.cancel()
		}
	case tickMsg:
		t.now = time.Time(msg)
		if t.result == nil {
			return t, tick()
		}
	case finishedMsg:
		t.cancel()
		t.now = time.Now()
		t.result = &msg
		return t, tea.Quit
	}
	return t, nil
}

func (t *task) View() string {
	var b strings.Builder
	elapsed := t.now.Sub(t.started).Truncate(100 * time.Millisecond)
	b.WriteString(titleStyle.Render(t.title))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render(elapsed.String()))
	b.WriteString("\n")
	if t.result == nil {
		b.WriteString(mutedStyle.Render("running, ctrl+c to cancel"))
		b.WriteString("\n")
		return b.String()
	}
	if t.result.err != nil {
		b.WriteString(failStyle.Render("FAILED"))
		b.WriteString(" ")
		b.WriteString(t.result.err.Error())
	} else {
		b.WriteString(okStyle.Render("OK"))
	}
	b.WriteString("\n")
	for _, d := range t.result.details {
		b.WriteString(detailStyle.Render("• " + d))
		b.WriteString("\n")
	}
	return b.String()
}

// Run renders a progress view while action executes under timeout. Ctrl+C
// cancels the action's context and waits for it to return.
func Run(title string, timeout time.Duration, action func(context.Context) ([]string, error)) ([]string, error) {
	now := time.Now()
	t := &task{title: title, timeout: timeout, action: action, started: now, now: now}
	final, err := tea.NewProgram(t).Run()
	if err != nil {
		return nil, err
	}
	res := final.(*task).result
	if res == nil {
		return nil, context.Canceled
	}
	return res.details, res.err
}
