// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Key design decisions:
//   - Tab-based navigation between views; Tab works even while typing
//   - Command mode (`:`) for a few app commands
//   - Jump mode (`/`) for quick view switching
//   - Help overlay (`?`) toggled on/off
//   - Results of async work are broadcast to every view; each view
//     ignores what it does not own
package tui

import (
	"fmt"
	"strings"

	"github.com/DachengChen/shelfcare/agent"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// Tab indices.
const (
	TabChat = iota
	TabInventory
	TabOrders
	TabExpiry
	TabTrace
	TabLog
)

// InputMode determines what keystrokes do.
type InputMode int

const (
	ModeNormal InputMode = iota
	ModeCommand
	ModeJump
)

// App is the root Bubble Tea model.
type App struct {
	views     []View
	activeTab int
	human     <-chan agent.HumanRequest
	title     string

	// UI state
	width     int
	height    int
	mode      InputMode
	cmdInput  string
	showHelp  bool
	statusMsg string
}

// NewApp creates the application with all views.
func NewApp(opts Options) *App {
	a := &App{
		views: []View{
			NewChatView(opts.Runner),
			NewInventoryView(opts.Dashboard),
			NewOrdersView(opts.Dashboard),
			NewExpiryView(opts.Dashboard),
			NewTraceView(opts.Runs),
			NewLogView(opts.LogPath),
		},
		title: opts.Title,
	}
	if opts.Human != nil {
		a.human = opts.Human.Requests()
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForHuman(a.human)}
	for _, v := range a.views {
		cmds = append(cmds, v.Init())
	}
	return tea.Batch(cmds...)
}

// waitForHuman delivers the next question the agent asks the user.
func waitForHuman(ch <-chan agent.HumanRequest) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		req, ok := <-ch
		if !ok {
			return nil
		}
		return HumanRequestMsg(req)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// header(1) + tabs(1) + border(2) + status(1)
		contentH := a.height - 5
		contentW := a.width - 2
		for _, v := range a.views {
			v.SetSize(contentW, contentH)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case StatusMsg:
		a.statusMsg = string(msg)
		return a, nil

	case HumanRequestMsg:
		// The question must be seen, whatever tab is open.
		a.activeTab = TabChat
		a.showHelp = false
		cmd := a.broadcast(msg)
		return a, tea.Batch(cmd, waitForHuman(a.human))

	case AgentResultMsg:
		a.statusMsg = ""
		if msg.Result.Error {
			a.statusMsg = "run failed: " + msg.Result.ErrorType
		}
	}

	return a, a.broadcast(msg)
}

func (a *App) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i, v := range a.views {
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.activeTab < len(a.views) {
		updated, cmd := a.views[a.activeTab].Update(msg)
		a.views[a.activeTab] = updated
		return a, cmd
	}
	return a, nil
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.mode {
	case ModeCommand:
		return a.handleCommandMode(msg)
	case ModeJump:
		return a.handleJumpMode(msg)
	default:
		return a.handleNormalMode(msg)
	}
}

func (a *App) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "tab":
		return a.switchTab((a.activeTab + 1) % len(a.views))
	case "shift+tab":
		return a.switchTab((a.activeTab + len(a.views) - 1) % len(a.views))
	case "f1":
		return a.switchTab(TabChat)
	}

	// A view taking text gets every other key.
	if a.views[a.activeTab].WantsTextInput() {
		return a.forward(msg)
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case ":":
		a.mode = ModeCommand
		a.cmdInput = ""
		return a, nil
	case "/":
		a.mode = ModeJump
		a.cmdInput = ""
		return a, nil
	case "?":
		a.showHelp = !a.showHelp
		return a, nil
	}
	return a.forward(msg)
}

func (a *App) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		cmd := a.executeCommand(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, cmd
	case "esc":
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil
	case "backspace":
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
		return a, nil
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			a.cmdInput += msg.String()
		}
		return a, nil
	}
}

func (a *App) handleJumpMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.jumpToView(a.cmdInput)
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil
	case "esc":
		a.mode = ModeNormal
		a.cmdInput = ""
		return a, nil
	case "backspace":
		if len(a.cmdInput) > 0 {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
		}
		return a, nil
	default:
		if msg.Type == tea.KeyRunes {
			a.cmdInput += msg.String()
		}
		return a, nil
	}
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx >= 0 && idx < len(a.views) {
		a.activeTab = idx
		a.showHelp = false
	}
	return a, nil
}

func (a *App) jumpToView(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	for i, v := range a.views {
		if strings.Contains(strings.ToLower(v.Name()), name) {
			a.activeTab = i
			a.statusMsg = ""
			return
		}
	}
	a.statusMsg = "view not found: " + name
}

func (a *App) executeCommand(input string) tea.Cmd {
	input = strings.TrimSpace(input)
	switch input {
	case "q", "quit":
		return tea.Quit
	case "refresh", "r":
		a.statusMsg = "refreshing..."
		var cmds []tea.Cmd
		for _, v := range a.views[TabInventory:] {
			cmds = append(cmds, v.Init())
		}
		return tea.Batch(cmds...)
	case "chat":
		a.activeTab = TabChat
		return nil
	default:
		a.statusMsg = "unknown command: " + input
		return nil
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	var inner string
	if a.showHelp {
		inner = a.renderHelp()
	} else {
		inner = a.views[a.activeTab].View()
	}

	frameHeight := max(a.height-5, 0)
	frame := StyleBorder.
		Width(a.width - 2).
		Height(frameHeight).
		Render(inner)

	return a.renderHeader() + "\n" + a.renderTabBar() + "\n" + frame + "\n" + a.renderStatusBar()
}

// renderHeader draws a simple text bar: logo + version + title.
func (a *App) renderHeader() string {
	left := StyleBold.Render("💊 shelfcare") + StyleDimmed.Render(" v"+appVersion)
	if a.title != "" {
		left += StyleSuccess.Render("  ⚡ " + a.title)
	}

	right := StyleDimmed.Render(fmt.Sprintf("%d×%d", a.width, a.height))
	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right), 1)

	return lipgloss.NewStyle().
		Width(a.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (a *App) renderTabBar() string {
	var tabs []string
	for i, v := range a.views {
		if i == a.activeTab {
			tabs = append(tabs, StyleTabActive.Render(v.Name()))
		} else {
			tabs = append(tabs, StyleTabInactive.Render(v.Name()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderStatusBar() string {
	var content string

	switch a.mode {
	case ModeCommand:
		content = StylePrompt.Render(":") + a.cmdInput + "█"
	case ModeJump:
		content = StylePrompt.Render("/") + a.cmdInput + "█"
	default:
		if a.statusMsg != "" {
			content = a.statusMsg
		} else {
			var parts []string
			for _, h := range a.getHelpItems() {
				parts = append(parts,
					StyleHelpKey.Render(h.Key)+" "+StyleHelpDesc.Render(h.Desc))
			}
			content = strings.Join(parts, "  │  ")
		}
	}

	return StyleStatusBar.Width(a.width).Render(content)
}

func (a *App) getHelpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "Tab", Desc: "switch"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	if !a.views[a.activeTab].WantsTextInput() {
		global = append([]KeyBinding{{Key: "?", Desc: "help"}}, global...)
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ shelfcare Keyboard Shortcuts"),
		"",
		StyleHelpKey.Render("Tab / Shift+Tab") + "  Switch between views",
		StyleHelpKey.Render("F1") + "               Back to chat",
		StyleHelpKey.Render("/") + "                Jump to view by name",
		StyleHelpKey.Render("?") + "                Toggle this help",
		StyleHelpKey.Render("q / Ctrl+C") + "       Quit",
		"",
		StyleTitle.Render("Chat"),
		"",
		StyleHelpKey.Render("Enter") + "            Send question / answer the assistant",
		StyleHelpKey.Render("Esc") + "              Cancel run / decline to answer",
		StyleHelpKey.Render("Ctrl+Y") + "           Copy last answer",
		StyleHelpKey.Render("Ctrl+L") + "           Start a new conversation",
		"",
		StyleTitle.Render("Commands"),
		"",
		StyleHelpKey.Render(":refresh") + "         Reload dashboards and trace",
		StyleHelpKey.Render(":chat") + "            Back to chat",
		StyleHelpKey.Render(":quit") + "            Quit",
		"",
		StyleDimmed.Render("Press ? to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Height(max(a.height-7, 0)).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
