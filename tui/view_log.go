// view_log.go tails the application log.
//
// The log file is re-read periodically using tea.Tick; JSON lines are
// shortened to time, level, component and message. The user can
// pause/resume the stream.
package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	logRefreshInterval = 2 * time.Second
	logTailLines       = 300
)

type LogView struct {
	path     string
	viewport viewport.Model
	lines    []string
	err      error
	paused   bool
	width    int
	height   int
}

func NewLogView(path string) *LogView {
	return &LogView{
		path:     path,
		viewport: viewport.New(80, 20),
	}
}

func (v *LogView) Name() string         { return "Log" }
func (v *LogView) WantsTextInput() bool { return false }

func (v *LogView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width - 2
	v.viewport.Height = max(height-2, 1)
}

func (v *LogView) ShortHelp() []KeyBinding {
	pause := "pause"
	if v.paused {
		pause = "resume"
	}
	return []KeyBinding{
		{Key: "p", Desc: pause},
		{Key: "↑/↓", Desc: "scroll"},
		{Key: "g/G", Desc: "top/bottom"},
	}
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

func (v *LogView) Init() tea.Cmd {
	return tea.Batch(v.fetchLog(), v.tick())
}

func (v *LogView) tick() tea.Cmd {
	return tea.Tick(logRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (v *LogView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case tickMsg:
		if !v.paused {
			return v, tea.Batch(v.fetchLog(), v.tick())
		}
		return v, v.tick()

	case LogMsg:
		v.err = msg.Err
		if msg.Err == nil {
			atBottom := v.viewport.AtBottom() || len(v.lines) == 0
			v.lines = msg.Lines
			v.viewport.SetContent(strings.Join(v.lines, "\n"))
			if atBottom {
				v.viewport.GotoBottom()
			}
		}
		return v, nil
	}

	return v, nil
}

func (v *LogView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "p":
		v.paused = !v.paused
		return v, nil
	case "g", "home":
		v.viewport.GotoTop()
		return v, nil
	case "G", "end":
		v.viewport.GotoBottom()
		return v, nil
	}
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

func (v *LogView) fetchLog() tea.Cmd {
	path := v.path
	return func() tea.Msg {
		if path == "" {
			return LogMsg{Lines: []string{StyleDimmed.Render("Logging to file is not configured.")}}
		}
		raw, err := tailFile(path, logTailLines)
		if err != nil {
			return LogMsg{Err: err}
		}
		lines := make([]string, len(raw))
		for i, l := range raw {
			lines[i] = formatLogLine(l)
		}
		return LogMsg{Lines: lines}
	}
}

// tailFile returns the last n lines of path.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	return ring, sc.Err()
}

// formatLogLine shortens a zerolog JSON line. Anything else is returned
// unchanged.
func formatLogLine(line string) string {
	var ev map[string]any
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return line
	}
	ts, _ := ev["time"].(string)
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		ts = t.Local().Format("15:04:05")
	}
	level, _ := ev["level"].(string)
	msg, _ := ev["message"].(string)
	component, _ := ev["component"].(string)
	delete(ev, "time")
	delete(ev, "level")
	delete(ev, "message")
	delete(ev, "component")

	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var fields []string
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, ev[k]))
	}

	out := fmt.Sprintf("%s %s", StyleDimmed.Render(ts), levelStyle(level).Render(fmt.Sprintf("%-5s", strings.ToUpper(level))))
	if component != "" {
		out += " " + StyleHelpKey.Render(component)
	}
	out += " " + msg
	if len(fields) > 0 {
		out += " " + StyleDimmed.Render(strings.Join(fields, " "))
	}
	return out
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "error", "fatal", "panic":
		return StyleError
	case "warn":
		return StyleWarning
	case "debug", "trace":
		return StyleDimmed
	default:
		return StyleSuccess
	}
}

func (v *LogView) View() string {
	status := StyleSuccess.Render("● STREAMING")
	if v.paused {
		status = StyleWarning.Render("● PAUSED")
	}

	header := fmt.Sprintf("  %s  %s", StyleTitle.Render("Application log"), status)
	if v.err != nil {
		header += "  " + StyleError.Render(v.err.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, v.viewport.View())
}
