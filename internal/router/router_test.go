package router

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
)

const (
	casualPrompt   = "Eres un compañero de conversación cercano y tranquilo. Responde con frases breves."
	guidancePrompt = "Eres un orientador de bienestar. Valida emociones y ofrece técnicas de regulación."
)

// fakeGenerator replays scripted replies and records every request
type fakeGenerator struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*provider.GenerateRequest
}

func (f *fakeGenerator) Stream(_ context.Context, req *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	reply := "De acuerdo."
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}

	ch := make(chan provider.StreamChunk, len(reply)+1)
	var content strings.Builder
	for _, word := range strings.SplitAfter(reply, " ") {
		content.WriteString(word)
		ch <- provider.StreamChunk{Delta: word, Content: content.String()}
	}
	ch <- provider.StreamChunk{Content: content.String(), Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeGenerator) last() *provider.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeRecorder struct {
	results []*questionnaire.Result
	err     error
}

func (f *fakeRecorder) RecordResult(_ context.Context, r *questionnaire.Result) error {
	f.results = append(f.results, r)
	return f.err
}

func newTestRouter(gen Generator, opts ...Option) *Router {
	base := []Option{
		WithGenerator(gen),
		WithPrompts(config.Prompts{Casual: casualPrompt, Guidance: guidancePrompt}),
		WithLogger(log.Discard()),
	}
	return New(append(base, opts...)...)
}

func send(t *testing.T, r *Router, st *State, text string) *Response {
	t.Helper()
	resp, err := r.HandleMessage(context.Background(), st, text)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestExit(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})
	for _, text := range []string{"salir", "  SALIR ", "exit", "quit"} {
		t.Run(text, func(t *testing.T) {
			resp := send(t, r, NewState(), text)
			assert.Equal(t, KindExit, resp.Kind)
		})
	}

	t.Run("salir del test is not exit", func(t *testing.T) {
		st := NewState()
		send(t, r, st, "pss")
		resp := send(t, r, st, "salir del test")
		assert.Equal(t, KindShowText, resp.Kind)
		assert.False(t, st.Test.Active)
	})
}

func TestInfoQuery(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(gen)

	tests := []struct {
		text string
		want string
	}{
		{"¿Qué es el PSS?", "PSS-14"},
		{"cuanto dura el test fisiologico", "fisiológico"},
		{"¿Para qué sirve el de síntomas?", "fisiológico"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			st := NewState()
			before := *st
			resp := send(t, r, st, tt.text)
			assert.Equal(t, KindShowText, resp.Kind)
			assert.Contains(t, resp.Text, tt.want)
			assert.Equal(t, before, *st)
		})
	}

	assert.Empty(t, gen.requests, "info queries must not reach the generator")
}

func TestInfoQueryWithoutTestReferenceGoesToChat(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Es una emoción natural."}}
	r := newTestRouter(gen)

	resp := send(t, r, NewState(), "¿qué es la calma?")
	assert.Equal(t, KindForwardToChat, resp.Kind)
	assert.Equal(t, "Es una emoción natural.", resp.Text)
}

func TestStartQuestionnaire(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})

	t.Run("pss14", func(t *testing.T) {
		st := NewState()
		st.LastSuggestion = SuggestionMenu
		resp := send(t, r, st, "Quiero hacer el test PSS")

		assert.Equal(t, KindShowQuestionWithChoices, resp.Kind)
		assert.Equal(t, 1, resp.Question)
		assert.Equal(t, 14, resp.Total)
		assert.Len(t, resp.Choices, 5)
		assert.Equal(t, Choice{Label: "Nunca", Payload: "0"}, resp.Choices[0])
		assert.False(t, strings.HasPrefix(resp.Text, "1)"), "ordinal must be stripped: %q", resp.Text)
		assert.True(t, st.Test.Active)
		assert.Equal(t, questionnaire.PSS14, st.Test.Questionnaire)
		assert.Empty(t, st.LastSuggestion)
	})

	t.Run("fisio", func(t *testing.T) {
		st := NewState()
		resp := send(t, r, st, "prefiero el fisiológico")
		assert.Equal(t, 5, resp.Total)
		assert.Len(t, resp.Choices, 4)
		assert.Equal(t, questionnaire.Fisio, st.Test.Questionnaire)
	})

	t.Run("fisio keywords", func(t *testing.T) {
		for _, msg := range []string{
			"quiero el test fisiológico",
			"tengo síntomas raros",
			"el de 5 items",
			"hagamos el test físico",
			"algo corporal",
		} {
			st := NewState()
			send(t, r, st, msg)
			assert.Equal(t, questionnaire.Fisio, st.Test.Questionnaire, msg)
		}
	})

	t.Run("choice payloads select tests", func(t *testing.T) {
		for _, c := range testChoices() {
			st := NewState()
			send(t, r, st, c.Payload)
			assert.Equal(t, questionnaire.ID(c.Payload), st.Test.Questionnaire)
		}
	})
}

func TestFullPSS14Run(t *testing.T) {
	rec := &fakeRecorder{}
	r := newTestRouter(&fakeGenerator{}, WithRecorder(rec))
	st := NewState()
	send(t, r, st, "pss14")

	var resp *Response
	for i := 0; i < 14; i++ {
		resp = send(t, r, st, "2")
		if i < 13 {
			require.Equal(t, KindShowQuestionWithChoices, resp.Kind)
			assert.Equal(t, i+2, resp.Question)
			assert.Empty(t, resp.Notice, "bare numbers are not announced")
		}
	}

	require.Equal(t, KindShowText, resp.Kind)
	require.NotNil(t, resp.Result)
	// Reversed items answered 2 score 4-2=2, so every item contributes 2
	assert.Equal(t, 28, resp.Result.Total)
	assert.Equal(t, questionnaire.LevelHigh, resp.Result.Level)
	assert.Contains(t, resp.Text, "28 de 56")
	assert.Contains(t, resp.Text, "ALTO")
	assert.False(t, st.Test.Active)
	require.Len(t, rec.results, 1)
	assert.Equal(t, resp.Result, rec.results[0])
}

func TestRecorderFailureDoesNotBreakConversation(t *testing.T) {
	rec := &fakeRecorder{err: errors.NewStoreError("insert", stderrors.New("disk full"))}
	r := newTestRouter(&fakeGenerator{}, WithRecorder(rec))
	st := NewState()
	send(t, r, st, "fisio")
	var resp *Response
	for i := 0; i < 5; i++ {
		resp = send(t, r, st, "0")
	}
	assert.Equal(t, KindShowText, resp.Kind)
	require.NotNil(t, resp.Result)
	assert.Equal(t, questionnaire.LevelLow, resp.Result.Level)
}

func TestFreeTextAnswers(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})

	tests := []struct {
		name        string
		test        string
		input       string
		wantKind    Kind
		wantNotice  string
		wantAnswers []int
	}{
		{
			name:        "keyword",
			test:        "fisio",
			input:       "un poco, la verdad",
			wantKind:    KindShowQuestionWithChoices,
			wantNotice:  "Interpreté tu respuesta como: «Un poco»",
			wantAnswers: []int{1},
		},
		{
			name:        "fuzzy auto accept",
			test:        "fisio",
			input:       "bastnte",
			wantKind:    KindShowQuestionWithChoices,
			wantNotice:  "Interpreté tu respuesta como: «Bastante»",
			wantAnswers: []int{2},
		},
		{
			name:        "one-based remap",
			test:        "pss",
			input:       "5",
			wantKind:    KindShowQuestionWithChoices,
			wantAnswers: []int{4},
		},
		{
			name:        "synonym",
			test:        "pss",
			input:       "casi siempre",
			wantKind:    KindShowQuestionWithChoices,
			wantNotice:  "Interpreté tu respuesta como: «A menudo»",
			wantAnswers: []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState()
			send(t, r, st, tt.test)
			resp := send(t, r, st, tt.input)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.Equal(t, tt.wantNotice, resp.Notice)
			assert.Equal(t, tt.wantAnswers, st.Test.Answers)
			assert.Equal(t, 2, resp.Question)
		})
	}
}

func TestAmbiguousAnswerPauses(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})
	st := NewState()
	first := send(t, r, st, "fisio")

	resp := send(t, r, st, "poquito")
	assert.Equal(t, KindShowQuestionWithChoices, resp.Kind)
	assert.Equal(t, []Choice{
		{Label: "Un poco", Payload: "1"},
		{Label: "Nada", Payload: "0"},
	}, resp.Choices)
	assert.Contains(t, resp.Text, "«Un poco»")
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeAnswerAmbiguous))
	assert.Equal(t, 0, st.Test.Current)
	assert.Empty(t, st.Test.Answers)

	// The same question is still pending
	q, ok := r.Engine().CurrentQuestion(&st.Test)
	require.True(t, ok)
	assert.Equal(t, first.Text, q)

	resp = send(t, r, st, resp.Choices[0].Payload)
	assert.Equal(t, 2, resp.Question)
	assert.Equal(t, []int{1}, st.Test.Answers)
}

func TestOutOfRangeAnswer(t *testing.T) {
	for _, answer := range []string{"7", "-1", " -3 "} {
		t.Run(answer, func(t *testing.T) {
			r := newTestRouter(&fakeGenerator{})
			st := NewState()
			first := send(t, r, st, "pss")

			resp := send(t, r, st, answer)
			assert.Equal(t, KindShowError, resp.Kind)
			assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeAnswerOutOfRange))
			assert.Contains(t, resp.Notice, "entre 0 y 4")
			assert.Contains(t, resp.Notice, strings.TrimSpace(answer))
			assert.Equal(t, first.Text, resp.Text)
			assert.Equal(t, 0, st.Test.Current)
			assert.Empty(t, st.Test.Answers)
		})
	}
}

func TestCancel(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(gen)

	t.Run("while active", func(t *testing.T) {
		st := NewState()
		send(t, r, st, "pss")
		send(t, r, st, "1")

		resp := send(t, r, st, "quiero cancelar")
		assert.Equal(t, KindShowText, resp.Kind)
		assert.Equal(t, CancelledText, resp.Text)
		assert.False(t, st.Test.Active)
		assert.Empty(t, st.Test.Answers)
	})

	t.Run("without a test goes to chat", func(t *testing.T) {
		st := NewState()
		resp := send(t, r, st, "cancelar")
		assert.Equal(t, KindForwardToChat, resp.Kind)
		require.NotNil(t, gen.last())
		assert.Equal(t, "cancelar", gen.last().Prompt)
	})
}

func TestTruthTableHandoff(t *testing.T) {
	r := newTestRouter(&fakeGenerator{})
	st := NewState()
	resp := send(t, r, st, "TablaVerdad")
	assert.Equal(t, KindHandoff, resp.Kind)
	assert.Equal(t, HandoffTruthTable, resp.Target)
}

func TestGuidanceModeIsSticky(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(gen)
	st := NewState()

	send(t, r, st, "hola")
	assert.Equal(t, casualPrompt, gen.last().SystemPrompt)
	assert.False(t, st.GuidanceMode)

	send(t, r, st, "últimamente me siento muy estresado")
	assert.Equal(t, guidancePrompt, gen.last().SystemPrompt)
	assert.True(t, st.GuidanceMode)

	send(t, r, st, "hola")
	assert.Equal(t, guidancePrompt, gen.last().SystemPrompt, "guidance mode must not revert on its own")

	resp := send(t, r, st, "reiniciar")
	assert.Equal(t, resetText, resp.Text)
	assert.False(t, st.GuidanceMode)
	assert.Empty(t, st.History)

	send(t, r, st, "hola")
	assert.Equal(t, casualPrompt, gen.last().SystemPrompt)
}

func TestSuggestionOffersMenu(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Te sugiero hacer un test para conocer mejor tu estrés."}}
	r := newTestRouter(gen)
	st := NewState()

	resp := send(t, r, st, "no sé qué me pasa")
	assert.Equal(t, KindForwardToChat, resp.Kind)
	assert.Equal(t, offerText, resp.Text)
	assert.Equal(t, testChoices(), resp.Choices)
	assert.Equal(t, SuggestionMenu, st.LastSuggestion)

	// The actual reply is what the model remembers
	require.Len(t, st.History, 2)
	assert.Contains(t, st.History[1].Content, "Te sugiero")

	resp = send(t, r, st, "¡Sí!")
	assert.Equal(t, KindShowText, resp.Kind)
	assert.Equal(t, menuText, resp.Text)
	assert.Len(t, resp.Choices, 2)
	assert.False(t, st.Test.Active, "an affirmative must not start a test")

	resp = send(t, r, st, "fisio")
	assert.Equal(t, KindShowQuestionWithChoices, resp.Kind)
	assert.Empty(t, st.LastSuggestion)
}

func TestAffirmativeWithoutOfferGoesToChat(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(gen)
	resp := send(t, r, NewState(), "vale")
	assert.Equal(t, KindForwardToChat, resp.Kind)
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"si", true},
		{"¡si!", true},
		{"si, por favor", true},
		{"claro que si", true},
		{"de acuerdo", true},
		{"casi", false},
		{"sientes", false},
		{"no", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isAffirmative(tt.in), tt.in)
	}
}

func TestGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: stderrors.New("connection refused")}
	r := newTestRouter(gen)
	st := NewState()

	resp := send(t, r, st, "hola")
	assert.Equal(t, KindShowError, resp.Kind)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeGeneratorFailed))
	assert.Contains(t, resp.Text, "connection refused")
	assert.Empty(t, st.History)
	assert.Len(t, gen.requests, 1, "no retry")
}

func TestStreamErrorChunk(t *testing.T) {
	gen := streamFunc(func() <-chan provider.StreamChunk {
		ch := make(chan provider.StreamChunk, 2)
		ch <- provider.StreamChunk{Delta: "Hola"}
		ch <- provider.StreamChunk{Done: true, Error: stderrors.New("model crashed")}
		close(ch)
		return ch
	})
	r := newTestRouter(gen)
	st := NewState()

	resp := send(t, r, st, "hola")
	assert.Equal(t, KindShowError, resp.Kind)
	assert.Empty(t, st.History)
}

func TestNoGenerator(t *testing.T) {
	r := New(WithLogger(log.Discard()))
	resp := send(t, r, NewState(), "hola")
	assert.Equal(t, KindShowError, resp.Kind)
	assert.True(t, errors.HasCode(resp.Err, errors.ErrCodeGeneratorUnknown))
}

func TestOnDelta(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Estoy aquí contigo."}}
	r := newTestRouter(gen)

	var deltas []string
	resp, err := r.HandleMessage(context.Background(), NewState(), "hola",
		OnDelta(func(s string) { deltas = append(deltas, s) }))
	require.NoError(t, err)
	assert.Equal(t, "Estoy aquí contigo.", resp.Text)
	assert.Equal(t, []string{"Estoy ", "aquí ", "contigo."}, deltas)
}

func TestContextCancelledDuringGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := streamFunc(func() <-chan provider.StreamChunk {
		cancel()
		return make(chan provider.StreamChunk)
	})
	r := newTestRouter(gen)

	_, err := r.HandleMessage(ctx, NewState(), "hola")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamClosedByCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := streamFunc(func() <-chan provider.StreamChunk {
		ch := make(chan provider.StreamChunk, 1)
		ch <- provider.StreamChunk{Delta: "Respira"}
		cancel()
		close(ch)
		return ch
	})
	r := newTestRouter(gen)
	st := NewState()

	_, err := r.HandleMessage(ctx, st, "hola")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.History, "a cut off reply is not kept")
}

func TestFallbackPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	r := New(WithGenerator(gen), WithLogger(log.Discard()),
		WithPrompts(config.Prompts{Casual: "corto", Guidance: guidancePrompt}))

	send(t, r, NewState(), "hola")
	assert.Equal(t, config.FallbackPrompt, gen.last().SystemPrompt)
}

func TestHistoryIsCapped(t *testing.T) {
	gen := &fakeGenerator{}
	r := newTestRouter(gen, WithMaxHistory(4))
	st := NewState()

	for _, msg := range []string{"uno", "dos", "tres"} {
		send(t, r, st, msg)
	}
	require.Len(t, st.History, 4)
	assert.Equal(t, provider.RoleUser, st.History[0].Role)
	assert.Equal(t, "dos", st.History[0].Content)

	// The generator saw the history before the current turn
	assert.Len(t, gen.last().Context, 4)
	assert.Equal(t, "tres", gen.last().Prompt)
}

type streamFunc func() <-chan provider.StreamChunk

func (f streamFunc) Stream(context.Context, *provider.GenerateRequest) (<-chan provider.StreamChunk, error) {
	return f(), nil
}
