package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/stressguard/internal/router"
	"github.com/felixgeelhaar/stressguard/internal/speech"
)

// VoiceCommand toggles reading replies aloud
const VoiceCommand = "/voz"

const (
	headerHeight = 2
	footerHeight = 5
)

type role int

const (
	roleAssistant role = iota
	roleUser
	roleNotice
	roleError
)

// entry is one line of the transcript
type entry struct {
	role role
	text string
}

// Model is the chat screen. It owns one router.State; the router is only
// called from a single in-flight turn at a time.
type Model struct {
	ctx     context.Context
	router  *router.Router
	state   *router.State
	speaker speech.Speaker

	// Conversation
	transcript []entry
	partial    string
	choices    []router.Choice
	selected   int
	question   int
	total      int
	progress   float64
	handoff    string
	// guidance mirrors State.GuidanceMode as of the last finished turn; the
	// state itself belongs to the turn goroutine while one is running
	guidance bool

	// Turn in flight
	waiting bool
	cancel  context.CancelFunc
	events  chan tea.Msg

	// UI state
	voice    bool
	width    int
	height   int
	ready    bool
	quitting bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	bar      progress.Model

	keys   keyMap
	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Status      lipgloss.Style
	Error       lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Muted       lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	Highlighted lipgloss.Style
	Choice      lipgloss.Style
	Help        lipgloss.Style
	Key         lipgloss.Style
	KeyDesc     lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true),
		User: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Highlighted: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).  // Purple
			Foreground(lipgloss.Color("230")). // Light yellow
			Bold(true).
			Padding(0, 1),
		Choice: lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Key: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		KeyDesc: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// keyMap defines the keyboard shortcuts
type keyMap struct {
	Quit   key.Binding
	Cancel key.Binding
	Send   key.Binding
	Next   key.Binding
	Prev   key.Binding
	Up     key.Binding
	Down   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "salir"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancelar respuesta"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "enviar"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "opción siguiente"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "opción anterior"),
		),
		Up: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "subir"),
		),
		Down: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "bajar"),
		),
	}
}

// Option configures a Model
type Option func(*Model)

// WithGreeting replaces the opening assistant message
func WithGreeting(text string) Option {
	return func(m *Model) { m.transcript[0].text = text }
}

// WithSpeaker sets the speaker used when voice is on
func WithSpeaker(s speech.Speaker) Option {
	return func(m *Model) {
		if s != nil {
			m.speaker = s
		}
	}
}

// WithVoice starts with voice on or off
func WithVoice(on bool) Option {
	return func(m *Model) { m.voice = on }
}

// WithState resumes an existing conversation
func WithState(st *router.State) Option {
	return func(m *Model) {
		if st != nil {
			m.state = st
			m.guidance = st.GuidanceMode
		}
	}
}

// NewModel creates the chat model. ctx bounds every router call.
func NewModel(ctx context.Context, r *router.Router, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Escribe tu mensaje…"
	ti.Prompt = "› "
	ti.CharLimit = 1000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:        ctx,
		router:     r,
		state:      router.NewState(),
		speaker:    speech.Nop{},
		transcript: []entry{{role: roleAssistant, text: router.Greeting}},
		input:      ti,
		spinner:    sp,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		keys:       defaultKeys(),
		styles:     DefaultStyles(),
	}
	m.spinner.Style = m.styles.Status
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the TUI model (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	if m.voice {
		greeting := m.transcript[0].text
		speaker := m.speaker
		return tea.Batch(textinput.Blink, func() tea.Msg {
			speaker.Speak(greeting)
			return nil
		})
	}
	return textinput.Blink
}

// Handoff returns the external tool the conversation asked to switch to,
// empty when none
func (m Model) Handoff() string {
	return m.handoff
}

// State returns the conversation state
func (m Model) State() *router.State {
	return m.state
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := msg.Height - headerHeight - footerHeight
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case deltaMsg:
		m.partial += msg.text
		m.refresh()
		return m, waitForEvent(m.events)

	case turnMsg:
		return m.finishTurn(msg)

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.waiting && m.cancel != nil {
			m.cancel()
		}
		return m, nil
	}

	// Input is locked while a reply is on its way
	if m.waiting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		if len(m.choices) > 0 {
			m.selected = (m.selected + 1) % len(m.choices)
		}
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		if len(m.choices) > 0 {
			m.selected = (m.selected + len(m.choices) - 1) % len(m.choices)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up, m.keys.Down):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" && len(m.choices) > 0 {
			c := m.choices[m.selected]
			return m.submit(c.Label, c.Payload)
		}
		return m.submit(text, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn. shown goes to the transcript, sent to the router.
func (m Model) submit(shown, sent string) (tea.Model, tea.Cmd) {
	if sent == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.EqualFold(sent, VoiceCommand) {
		m.voice = !m.voice
		text := "Voz desactivada."
		if m.voice {
			text = "Voz activada."
		}
		m.transcript = append(m.transcript, entry{role: roleNotice, text: text})
		m.refresh()
		return m, nil
	}

	m.transcript = append(m.transcript, entry{role: roleUser, text: shown})
	m.choices = nil
	m.selected = 0
	m.partial = ""
	m.waiting = true

	ctx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 64)
	m.cancel = cancel
	m.events = events

	r, st := m.router, m.state
	go func() {
		resp, err := r.HandleMessage(ctx, st, sent, router.OnDelta(func(delta string) {
			select {
			case events <- deltaMsg{text: delta}:
			case <-ctx.Done():
			}
		}))
		events <- turnMsg{resp: resp, err: err, guidance: st.GuidanceMode}
	}()

	m.refresh()
	return m, tea.Batch(m.spinner.Tick, waitForEvent(events))
}

func (m Model) finishTurn(msg turnMsg) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.waiting = false
	m.partial = ""
	m.guidance = msg.guidance

	if msg.err != nil {
		m.transcript = append(m.transcript, entry{role: roleNotice, text: "Respuesta cancelada."})
		m.refresh()
		return m, nil
	}

	resp := msg.resp
	if resp.Notice != "" {
		m.transcript = append(m.transcript, entry{role: roleNotice, text: resp.Notice})
	}
	r := roleAssistant
	if resp.Kind == router.KindShowError {
		r = roleError
	}
	m.transcript = append(m.transcript, entry{role: r, text: resp.Text})
	m.choices = resp.Choices
	m.selected = 0
	m.question = resp.Question
	m.total = resp.Total
	m.progress = resp.Progress

	if m.voice {
		m.speaker.Speak(resp.Text)
	}

	switch resp.Kind {
	case router.KindExit:
		m.quitting = true
		m.refresh()
		return m, tea.Quit
	case router.KindHandoff:
		m.handoff = resp.Target
		m.quitting = true
		m.refresh()
		return m, tea.Quit
	}

	m.refresh()
	return m, nil
}

// refresh re-renders the transcript into the viewport
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// deltaMsg carries a streamed fragment of the reply
type deltaMsg struct {
	text string
}

// turnMsg ends a turn
type turnMsg struct {
	resp     *router.Response
	err      error
	guidance bool
}

func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
