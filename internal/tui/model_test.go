package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/router"
)

// echoGenerator streams a fixed reply word by word
type echoGenerator struct {
	reply string
	err   error
}

func (g echoGenerator) Stream(_ context.Context, _ *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	if g.err != nil {
		return nil, g.err
	}
	words := strings.SplitAfter(g.reply, " ")
	ch := make(chan provider.StreamChunk, len(words)+1)
	for _, w := range words {
		ch <- provider.StreamChunk{Delta: w}
	}
	ch <- provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

// stallGenerator never answers
type stallGenerator struct{}

func (stallGenerator) Stream(context.Context, *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	return make(chan provider.StreamChunk), nil
}

// recordingSpeaker keeps everything it was asked to say
type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

const testReply = "Te escucho con atención."

func newTestRouter(gen router.Generator) *router.Router {
	return router.New(
		router.WithGenerator(gen),
		router.WithPrompts(config.Prompts{
			Casual:   strings.Repeat("Conversa de forma cercana y tranquila. ", 3),
			Guidance: strings.Repeat("Acompaña con empatía y técnicas de calma. ", 3),
		}),
		router.WithLogger(log.Discard()),
	)
}

func newTestModel(t *testing.T, gen router.Generator, opts ...Option) Model {
	t.Helper()
	m := NewModel(context.Background(), newTestRouter(gen), opts...)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// typeAndSend types text into the input and presses enter
func typeAndSend(m Model, text string) (Model, tea.Cmd) {
	if text != "" {
		m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	}
	return update(m, tea.KeyMsg{Type: tea.KeyEnter})
}

// settle feeds turn events back into the model until the reply is in
func settle(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for m.waiting {
		select {
		case msg := <-m.events:
			m, cmd = update(m, msg)
		case <-time.After(5 * time.Second):
			t.Fatal("turn did not finish")
		}
	}
	return m, cmd
}

func last(m Model) entry {
	return m.transcript[len(m.transcript)-1]
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"manual", nil, router.Greeting},
		{"automatic", []Option{WithGreeting(router.AlertGreeting)}, router.AlertGreeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(context.Background(), newTestRouter(echoGenerator{reply: testReply}), tt.opts...)

			require.Len(t, m.transcript, 1)
			assert.Equal(t, entry{role: roleAssistant, text: tt.want}, m.transcript[0])
			assert.False(t, m.ready)
			assert.Equal(t, "Iniciando...", m.View())
		})
	}
}

func TestWindowSize(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	assert.True(t, m.ready)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Equal(t, 30-headerHeight-footerHeight, m.viewport.Height)
	assert.Contains(t, m.View(), "StressGuard")

	m, _ = update(m, tea.WindowSizeMsg{Width: 60, Height: 4})
	assert.Equal(t, 60, m.viewport.Width)
	assert.Equal(t, 1, m.viewport.Height)
}

func TestSendMessage(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, cmd := typeAndSend(m, "hola")
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Equal(t, entry{role: roleUser, text: "hola"}, last(m))
	assert.Contains(t, m.View(), "escribiendo")

	m, _ = settle(t, m)
	assert.False(t, m.waiting)
	assert.Empty(t, m.partial)
	assert.Equal(t, entry{role: roleAssistant, text: testReply}, last(m))
	assert.Nil(t, m.cancel)
}

func TestDeltaRendersPartialReply(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})
	m.waiting = true
	m.events = make(chan tea.Msg)

	m, cmd := update(m, deltaMsg{text: "Te "})
	m, _ = update(m, deltaMsg{text: "escucho"})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Te escucho", m.partial)
	assert.Contains(t, m.viewport.View(), "Te escucho")
}

func TestEmptyInputIsIgnored(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, cmd := typeAndSend(m, "")
	assert.Nil(t, cmd)
	assert.False(t, m.waiting)
	assert.Len(t, m.transcript, 1)
}

func TestInputLockedWhileWaiting(t *testing.T) {
	m := newTestModel(t, stallGenerator{})

	m, _ = typeAndSend(m, "hola")
	require.True(t, m.waiting)

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("otra")})
	assert.Nil(t, cmd)
	assert.Empty(t, m.input.Value())

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	m, _ = settle(t, m)
	assert.Equal(t, entry{role: roleNotice, text: "Respuesta cancelada."}, last(m))
}

func TestChoiceSelection(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, _ = typeAndSend(m, "quiero hacer el test fisiologico")
	m, _ = settle(t, m)
	require.Len(t, m.choices, 4)
	assert.Equal(t, 1, m.question)
	assert.Equal(t, 5, m.total)
	assert.Contains(t, m.View(), "Pregunta 1 de 5")

	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 2, m.selected)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 1, m.selected)

	// enter with an empty input sends the highlighted choice
	m, _ = typeAndSend(m, "")
	assert.Equal(t, entry{role: roleUser, text: "Un poco"}, last(m))
	m, _ = settle(t, m)

	assert.Equal(t, 2, m.question)
	assert.Equal(t, []int{1}, m.state.Test.Answers)
	assert.Equal(t, 0, m.selected)
}

func TestOutOfRangeShowsError(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, _ = typeAndSend(m, "fisio")
	m, _ = settle(t, m)
	m, _ = typeAndSend(m, "9")
	m, _ = settle(t, m)

	assert.Equal(t, roleError, last(m).role)
	assert.Equal(t, roleNotice, m.transcript[len(m.transcript)-2].role)
	assert.Contains(t, m.transcript[len(m.transcript)-2].text, "fuera de la escala")
	assert.NotEmpty(t, m.choices)
}

func TestGeneratorErrorShown(t *testing.T) {
	m := newTestModel(t, echoGenerator{err: errors.New("connection refused")})

	m, _ = typeAndSend(m, "hola")
	m, _ = settle(t, m)

	assert.Equal(t, roleError, last(m).role)
	assert.Contains(t, m.View(), "✗")
}

func TestVoiceToggle(t *testing.T) {
	speaker := &recordingSpeaker{}
	m := newTestModel(t, echoGenerator{reply: testReply}, WithSpeaker(speaker))

	m, cmd := typeAndSend(m, VoiceCommand)
	assert.Nil(t, cmd)
	assert.True(t, m.voice)
	assert.False(t, m.waiting)
	assert.Equal(t, entry{role: roleNotice, text: "Voz activada."}, last(m))

	m, _ = typeAndSend(m, "hola")
	m, _ = settle(t, m)
	assert.Equal(t, []string{testReply}, speaker.said())

	m, _ = typeAndSend(m, "/VOZ")
	assert.False(t, m.voice)
	m, _ = typeAndSend(m, "hola")
	_, _ = settle(t, m)
	assert.Len(t, speaker.said(), 1)
}

func TestInitSpeaksGreetingWithVoice(t *testing.T) {
	speaker := &recordingSpeaker{}
	m := NewModel(context.Background(), newTestRouter(echoGenerator{reply: testReply}),
		WithSpeaker(speaker), WithVoice(true))

	cmd := m.Init()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c != nil {
			c()
		}
	}
	assert.Equal(t, []string{router.Greeting}, speaker.said())
}

func TestExitQuits(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, _ = typeAndSend(m, "salir")
	m, cmd := settle(t, m)

	assert.True(t, m.quitting)
	assert.True(t, isQuit(cmd))
	assert.Empty(t, m.Handoff())
}

func TestHandoffQuits(t *testing.T) {
	m := newTestModel(t, echoGenerator{reply: testReply})

	m, _ = typeAndSend(m, "tablaverdad")
	m, cmd := settle(t, m)

	assert.True(t, isQuit(cmd))
	assert.Equal(t, router.HandoffTruthTable, m.Handoff())
}

func TestCtrlCQuits(t *testing.T) {
	m := newTestModel(t, stallGenerator{})
	m, _ = typeAndSend(m, "hola")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.True(t, isQuit(cmd))
}

func TestWithStateKeepsConversation(t *testing.T) {
	st := router.NewState()
	st.GuidanceMode = true
	m := newTestModel(t, echoGenerator{reply: testReply}, WithState(st))

	assert.Same(t, st, m.State())
	assert.Contains(t, m.View(), "modo acompañamiento")
}

// gatedGenerator holds its reply until release is closed
type gatedGenerator struct {
	release chan struct{}
}

func (g gatedGenerator) Stream(ctx context.Context, _ *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	ch := make(chan provider.StreamChunk, 2)
	go func() {
		defer close(ch)
		select {
		case <-g.release:
			ch <- provider.StreamChunk{Delta: testReply}
			ch <- provider.StreamChunk{Done: true}
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func TestViewDuringTurnUsesLastFinishedState(t *testing.T) {
	gen := gatedGenerator{release: make(chan struct{})}
	m := newTestModel(t, gen)

	m, _ = typeAndSend(m, "estoy muy estresado")
	require.True(t, m.waiting)

	// the turn goroutine owns the router state now
	for i := 0; i < 20; i++ {
		assert.NotContains(t, m.View(), "modo acompañamiento")
		time.Sleep(time.Millisecond)
	}

	close(gen.release)
	m, _ = settle(t, m)
	assert.Contains(t, m.View(), "modo acompañamiento")
	assert.Equal(t, testReply, last(m).text)
}
