// view_chat.go is the assistant chat.
//
// Questions run through the agent asynchronously. While a run is in
// flight the agent may ask the user something back; the input line then
// switches to answering that question.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/session"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var errDeclined = errors.New("the user declined to answer")

type chatEntry struct {
	role string // "user", "assistant", "human"
	text string
	meta string
}

type ChatView struct {
	runner   session.Runner
	conv     *agent.Conversation
	entries  []chatEntry
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	loading bool
	cancel  context.CancelFunc
	pending *agent.HumanRequest
	last    string

	width  int
	height int
}

func NewChatView(runner session.Runner) *ChatView {
	in := textinput.New()
	in.Placeholder = "What stock is running low?"
	in.Prompt = "Ask> "
	in.PromptStyle = StylePrompt
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)

	return &ChatView{
		runner:   runner,
		conv:     agent.NewConversation(),
		viewport: viewport.New(80, 20),
		input:    in,
		spinner:  sp,
	}
}

func (v *ChatView) Name() string         { return "Chat" }
func (v *ChatView) WantsTextInput() bool { return true }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.input.Width = width - 8
	v.viewport.Width = width - 2
	v.viewport.Height = max(height-3, 1)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-6, 20)),
	)
	if err == nil {
		v.renderer = r
	}
	v.refresh()
}

func (v *ChatView) ShortHelp() []KeyBinding {
	if v.pending != nil {
		return []KeyBinding{
			{Key: "Enter", Desc: "answer"},
			{Key: "Esc", Desc: "decline"},
		}
	}
	keys := []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "Ctrl+Y", Desc: "copy answer"},
		{Key: "Ctrl+L", Desc: "clear"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
	}
	if v.loading {
		keys = append(keys, KeyBinding{Key: "Esc", Desc: "cancel"})
	}
	return keys
}

func (v *ChatView) Init() tea.Cmd {
	v.refresh()
	return textinput.Blink
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case AgentResultMsg:
		v.loading = false
		v.cancel = nil
		v.pending = nil
		v.input.Prompt = "Ask> "
		v.last = msg.Result.Output
		v.entries = append(v.entries, chatEntry{role: "assistant", text: msg.Result.Output, meta: resultMeta(msg.Result)})
		v.refresh()
		return v, nil

	case HumanRequestMsg:
		req := agent.HumanRequest(msg)
		v.pending = &req
		v.entries = append(v.entries, chatEntry{role: "human", text: req.Prompt})
		v.input.Prompt = "Reply> "
		v.input.Reset()
		v.refresh()
		return v, nil

	case spinner.TickMsg:
		if !v.loading {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if v.pending != nil {
			v.answerHuman(v.input.Value(), nil)
			return v, nil
		}
		return v, v.send()
	case "esc":
		if v.pending != nil {
			v.answerHuman("", errDeclined)
			return v, nil
		}
		if v.cancel != nil {
			v.cancel()
		}
		return v, nil
	case "ctrl+l":
		if v.loading {
			return v, nil
		}
		v.entries = nil
		v.conv = agent.NewConversation()
		v.last = ""
		v.refresh()
		return v, nil
	case "ctrl+y":
		return v, v.copyLast()
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *ChatView) send() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.loading {
		return nil
	}
	v.input.Reset()
	v.entries = append(v.entries, chatEntry{role: "user", text: text})
	v.loading = true
	v.refresh()

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	conv := v.conv
	runner := v.runner
	run := func() tea.Msg {
		defer cancel()
		return AgentResultMsg{Question: text, Result: runner.Run(ctx, conv, text)}
	}
	return tea.Batch(run, v.spinner.Tick)
}

func (v *ChatView) answerHuman(answer string, err error) {
	req := v.pending
	v.pending = nil
	v.input.Prompt = "Ask> "
	v.input.Reset()
	if err != nil {
		v.entries = append(v.entries, chatEntry{role: "user", text: "(declined)"})
	} else {
		v.entries = append(v.entries, chatEntry{role: "user", text: answer})
	}
	// Reply is buffered, so this never blocks the UI.
	req.Reply <- agent.HumanReply{Answer: answer, Err: err}
	v.refresh()
}

func (v *ChatView) copyLast() tea.Cmd {
	text := v.last
	if text == "" {
		return nil
	}
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return StatusMsg("copy failed: " + err.Error())
		}
		return StatusMsg("answer copied to clipboard")
	}
}

func resultMeta(res *agent.Result) string {
	parts := []string{fmt.Sprintf("%d model calls", res.Iterations)}
	if res.StoppedEarly {
		parts = append(parts, "stopped early")
	}
	if res.ErrorType != "" {
		parts = append(parts, res.ErrorType)
	}
	return strings.Join(parts, " · ")
}

func (v *ChatView) render(text string) string {
	if v.renderer == nil {
		return text
	}
	out, err := v.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (v *ChatView) refresh() {
	var b strings.Builder
	if len(v.entries) == 0 {
		b.WriteString(StyleTitle.Render("Pharmacy assistant") + "\n")
		b.WriteString("Ask about stock, orders and expiry dates, or ask me to add a product.\n")
		b.WriteString(StyleDimmed.Render("e.g. \"Which batches expire in the next 30 days?\""))
	}
	for _, e := range v.entries {
		switch e.role {
		case "user":
			b.WriteString(StyleUser.Render("You: ") + e.text + "\n\n")
		case "human":
			b.WriteString(StyleHuman.Render("Assistant asks: ") + e.text + "\n\n")
		case "assistant":
			b.WriteString(StyleAssistant.Render("Assistant:") + "\n")
			b.WriteString(v.render(e.text) + "\n")
			if e.meta != "" {
				b.WriteString(StyleDimmed.Render("  "+e.meta) + "\n")
			}
			b.WriteString("\n")
		}
	}
	if v.loading && v.pending == nil {
		b.WriteString(v.spinner.View() + StyleDimmed.Render(" thinking..."))
	}
	v.viewport.SetContent(b.String())
	v.viewport.GotoBottom()
}

func (v *ChatView) View() string {
	var prompt string
	if v.loading && v.pending == nil {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render("waiting for the assistant...")
	} else {
		prompt = v.input.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, prompt, "", v.viewport.View())
}
