// view_trace.go lists recent agent runs from the run log and shows the
// tool calls of the selected one.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const traceLimit = 50

// RunLister reads the persisted run log. *store.Store implements it.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]agent.RunRecord, error)
}

type TraceView struct {
	runs    RunLister
	records []agent.RunRecord
	table   table.Model
	detail  viewport.Model
	err     error
	width   int
	height  int
}

func NewTraceView(runs RunLister) *TraceView {
	t := table.New(table.WithColumns([]table.Column{
		{Title: "Started", Width: 19},
		{Title: "Question", Width: 40},
		{Title: "State", Width: 8},
		{Title: "Error", Width: 20},
		{Title: "Calls", Width: 5},
		{Title: "Took", Width: 8},
	}), table.WithFocused(true), table.WithHeight(8))
	t.SetStyles(tableStyles())
	return &TraceView{runs: runs, table: t, detail: viewport.New(80, 10)}
}

func (v *TraceView) Name() string         { return "Trace" }
func (v *TraceView) WantsTextInput() bool { return false }

func (v *TraceView) SetSize(width, height int) {
	v.width = width
	v.height = height
	tableH := max(height/2-1, 3)
	v.table.SetWidth(width - 2)
	v.table.SetHeight(tableH)
	v.detail.Width = width - 2
	v.detail.Height = max(height-tableH-4, 1)
	v.showSelected()
}

func (v *TraceView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "r", Desc: "refresh"},
		{Key: "↑/↓", Desc: "select run"},
		{Key: "PgUp/PgDn", Desc: "scroll calls"},
	}
}

func (v *TraceView) Init() tea.Cmd {
	if v.runs == nil {
		return nil
	}
	runs := v.runs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dashboardTimeout)
		defer cancel()
		records, err := runs.RecentRuns(ctx, traceLimit)
		return RunsMsg{Runs: records, Err: err}
	}
}

func (v *TraceView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case RunsMsg:
		v.err = msg.Err
		if msg.Err == nil {
			v.records = msg.Runs
			v.table.SetRows(runRows(msg.Runs))
			v.showSelected()
		}
		return v, nil

	case AgentResultMsg:
		// A run just finished; pick it up from the log.
		return v, v.Init()

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return v, v.Init()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			v.detail, cmd = v.detail.Update(msg)
			return v, cmd
		}
		var cmd tea.Cmd
		v.table, cmd = v.table.Update(msg)
		v.showSelected()
		return v, cmd
	}
	return v, nil
}

func (v *TraceView) showSelected() {
	i := v.table.Cursor()
	if i < 0 || i >= len(v.records) {
		v.detail.SetContent(StyleDimmed.Render("No runs recorded yet."))
		return
	}
	v.detail.SetContent(renderRun(v.records[i]))
	v.detail.GotoTop()
}

func (v *TraceView) View() string {
	header := "  " + StyleTitle.Render("Agent runs")
	switch {
	case v.runs == nil:
		return lipgloss.JoinVertical(lipgloss.Left, header, StyleDimmed.Render("  Run log is disabled."))
	case v.err != nil:
		header += "  " + StyleError.Render(v.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, v.table.View(), "", v.detail.View())
}

func runRows(records []agent.RunRecord) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		rows[i] = table.Row{
			r.Started.Local().Format("2006-01-02 15:04:05"),
			oneLine(r.Question),
			r.State.String(),
			r.ErrorType,
			fmt.Sprint(r.Iterations),
			r.Duration.Round(10 * time.Millisecond).String(),
		}
	}
	return rows
}

func renderRun(r agent.RunRecord) string {
	var b strings.Builder
	b.WriteString(StyleBold.Render("Q: ") + r.Question + "\n")
	b.WriteString(StyleBold.Render("A: ") + r.Output + "\n\n")
	if len(r.Invocations) == 0 {
		b.WriteString(StyleDimmed.Render("No tool calls."))
		return b.String()
	}
	for _, inv := range r.Invocations {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			StyleHelpKey.Render(fmt.Sprintf("#%d", inv.Step)),
			StyleBold.Render(inv.Tool),
			StyleDimmed.Render(inv.Duration.Round(time.Millisecond).String())))
		b.WriteString("  in:  " + oneLine(inv.Input) + "\n")
		if inv.Err != "" {
			b.WriteString("  " + StyleError.Render("err: "+inv.Err) + "\n")
		}
		b.WriteString("  out: " + oneLine(inv.Output) + "\n")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
