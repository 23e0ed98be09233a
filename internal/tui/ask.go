// Package tui provides an interactive terminal for product Q&A.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"prodintel/internal/answer"
	"prodintel/internal/index"
	"prodintel/internal/matcher"
)

// Deps are the service handles the TUI talks to.
type Deps struct {
	Matcher   *matcher.Matcher
	Engine    *index.Engine
	Generator answer.Generator
}

type askState int

const (
	askIdle askState = iota
	askWorking
)

type message struct {
	role    string // "user", "answer", "error", "system"
	content string
}

// answerMsg is sent when a retrieve-and-generate round completes.
type answerMsg struct {
	answer string
	err    error
}

type model struct {
	deps        Deps
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []message
	productID   string
	state       askState
	width       int
	height      int
	initialized bool
}

func newModel(deps Deps) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about a product..."
	ti.CharLimit = 2000
	ti.Focus()

	return model{
		deps:    deps,
		spinner: sp,
		input:   ti,
		state:   askIdle,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) initViewport(width, height int) {
	m.width = width
	m.height = height

	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(titleStyle.Render("prodintel") + "\n\n" + dimStyle.Render(
		"Ask a question about a product.\n\n"+
			"Commands: /product <id>, /products, /clear, /help, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func askQuestion(deps Deps, productID, question string) tea.Cmd {
	return func() tea.Msg {
		chunks, err := deps.Engine.Retrieve(question, productID, 0)
		if err != nil {
			return answerMsg{err: fmt.Errorf("retrieval error: %w", err)}
		}
		if len(chunks) == 0 {
			return answerMsg{answer: "No relevant information found in the product documentation."}
		}
		contexts := make([]string, len(chunks))
		for i, c := range chunks {
			contexts[i] = c.Text
		}
		text, err := deps.Generator.Generate(context.Background(), question, contexts)
		if err != nil {
			return answerMsg{err: fmt.Errorf("generation error: %w", err)}
		}
		return answerMsg{answer: text}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.state = askIdle
		if msg.err != nil {
			m.messages = append(m.messages, message{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, message{role: "answer", content: msg.answer})
		}
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.state != askIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state != askIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()

			if cmd, handled := m.handleCommand(line); handled {
				return m, cmd
			}

			m.messages = append(m.messages, message{role: "user", content: line})
			m.state = askWorking
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.spinner.Tick, askQuestion(m.deps, m.productID, line))
		}
	}

	if m.state == askIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleCommand processes slash commands; returns handled=false for plain
// questions.
func (m *model) handleCommand(line string) (tea.Cmd, bool) {
	if !strings.HasPrefix(line, "/") {
		return nil, false
	}
	defer func() {
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
	}()

	switch {
	case line == "/exit" || line == "/quit":
		return tea.Quit, true
	case line == "/clear":
		m.messages = nil
		return nil, true
	case line == "/help":
		m.messages = append(m.messages, message{role: "system", content: "Commands:\n  /product <id> - scope questions to one product\n  /product      - clear the product scope\n  /products     - list catalog products\n  /clear        - clear the conversation\n  /exit         - quit"})
		return nil, true
	case line == "/products":
		var sb strings.Builder
		for _, e := range m.deps.Matcher.Entries() {
			fmt.Fprintf(&sb, "%-24s %s (%s)\n", e.ProductID, e.Title, e.Brand)
		}
		if sb.Len() == 0 {
			sb.WriteString("Catalog is empty.")
		}
		m.messages = append(m.messages, message{role: "system", content: sb.String()})
		return nil, true
	case line == "/product":
		m.productID = ""
		m.messages = append(m.messages, message{role: "system", content: "Product scope cleared."})
		return nil, true
	case strings.HasPrefix(line, "/product "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "/product "))
		if !m.deps.Matcher.ValidateProductID(id) {
			m.messages = append(m.messages, message{role: "error", content: fmt.Sprintf("unknown product id %q", id)})
			return nil, true
		}
		m.productID = id
		m.messages = append(m.messages, message{role: "system", content: "Questions now scoped to " + id + "."})
		return nil, true
	default:
		m.messages = append(m.messages, message{role: "error", content: "unknown command " + line})
		return nil, true
	}
}

func (m model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return answerMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return answerMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m model) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "answer":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}
	if m.state != askIdle {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Thinking...") + "\n")
	}
	return sb.String()
}

func (m model) View() string {
	if !m.initialized {
		return ""
	}

	scope := "all products"
	if m.productID != "" {
		scope = m.productID
	}
	statusText := "idle"
	if m.state == askWorking {
		statusText = "working..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" prodintel ask • %s • %s", scope, statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

// Run starts the ask TUI.
func Run(deps Deps) error {
	p := tea.NewProgram(newModel(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
