// Package router decides, per user message, between free chat with the
// language model and the scripted questionnaire flow.
//
// HandleMessage is the single entry point. It never blocks on anything but
// the chat generator and keeps all conversation state in the caller's State.
package router

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/interpret"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/telemetry"
	"github.com/felixgeelhaar/stressguard/internal/textmatch"
)

// Generator streams a chat completion. The channel is closed after a chunk
// with Done set.
type Generator interface {
	Stream(ctx context.Context, req *provider.GenerateRequest) (<-chan provider.StreamChunk, error)
}

// ResultRecorder persists completed questionnaires
type ResultRecorder interface {
	RecordResult(ctx context.Context, r *questionnaire.Result) error
}

// Router routes user messages. It is stateless apart from its collaborators
// and may be shared by many conversations.
type Router struct {
	engine     *questionnaire.Engine
	generator  Generator
	recorder   ResultRecorder
	prompts    config.Prompts
	maxHistory int
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// Option configures a Router
type Option func(*Router)

// WithGenerator sets the chat generator used for free conversation
func WithGenerator(g Generator) Option {
	return func(r *Router) { r.generator = g }
}

// WithRecorder sets where completed results are stored
func WithRecorder(rec ResultRecorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithPrompts sets the casual and guidance system instructions
func WithPrompts(p config.Prompts) Option {
	return func(r *Router) { r.prompts = p }
}

// WithMaxHistory caps the chat history kept in State
func WithMaxHistory(n int) Option {
	return func(r *Router) { r.maxHistory = n }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMetrics records routing decisions, generator calls and completions
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithEngine replaces the questionnaire engine
func WithEngine(e *questionnaire.Engine) Option {
	return func(r *Router) { r.engine = e }
}

// New creates a router over the built-in questionnaires
func New(opts ...Option) *Router {
	r := &Router{
		engine:     questionnaire.NewEngine(),
		maxHistory: DefaultMaxHistory,
		logger:     log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the questionnaire engine
func (r *Router) Engine() *questionnaire.Engine {
	return r.engine
}

// CallOption configures a single HandleMessage call
type CallOption func(*call)

type call struct {
	onDelta func(string)
}

// OnDelta receives every streamed fragment of a chat reply as it arrives
func OnDelta(fn func(string)) CallOption {
	return func(c *call) { c.onDelta = fn }
}

// HandleMessage processes one user message against st.
// The returned error is non-nil only when ctx ends during generation;
// every other failure is reported as a KindShowError response.
func (r *Router) HandleMessage(ctx context.Context, st *State, text string, opts ...CallOption) (*Response, error) {
	var c call
	for _, opt := range opts {
		opt(&c)
	}

	ctx, span := telemetry.StartTurnSpan(ctx, len(text), st.Test.Active)
	defer span.End()

	resp, err := r.route(ctx, st, text, c)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if resp.Err != nil {
		telemetry.RecordError(span, resp.Err)
	} else {
		telemetry.RecordSuccess(span)
	}
	if r.metrics != nil {
		r.metrics.RouterDecisions.WithLabelValues(string(resp.Kind)).Inc()
		if resp.Err != nil {
			r.metrics.RecordError(resp.Err, "router")
		}
	}
	return resp, nil
}

func (r *Router) route(ctx context.Context, st *State, text string, c call) (*Response, error) {
	folded := textmatch.Fold(text)

	// 1. exit
	if IsExitCommand(text) {
		return &Response{Kind: KindExit, Text: farewellText}, nil
	}

	// 2. informational query about a test
	if resp := r.infoQuery(folded); resp != nil {
		return resp, nil
	}

	// 3. cancel a running test
	if st.Test.Active {
		if IsCancelCommand(text) {
			r.engine.Cancel(&st.Test)
			r.logger.Debug("questionnaire cancelled")
			return &Response{Kind: KindShowText, Text: CancelledText}, nil
		}
	}

	// 4. memory reset
	if textmatch.EqualsAny(folded, resetWords) {
		st.ClearMemory()
		r.logger.Debug("conversation memory cleared")
		return &Response{Kind: KindShowText, Text: resetText}, nil
	}

	// 5. truth table handoff
	if folded == truthTableWord {
		return &Response{Kind: KindHandoff, Text: handoffText, Target: HandoffTruthTable}, nil
	}

	// 6. answer for the running test
	if st.Test.Active {
		return r.answer(ctx, st, text), nil
	}

	// 7. explicit test selection
	if d := r.selectTest(folded); d != nil {
		return r.start(st, d.ID), nil
	}

	// 8. yes to the offered menu
	if st.LastSuggestion == SuggestionMenu && isAffirmative(folded) {
		return &Response{Kind: KindShowText, Text: menuText, Choices: testChoices()}, nil
	}

	// 9. free chat
	return r.chat(ctx, st, text, folded, c)
}

func (r *Router) infoQuery(folded string) *Response {
	if _, ok := textmatch.ContainsAny(folded, infoMarkers); !ok {
		return nil
	}
	d := r.selectTest(folded)
	if d == nil {
		return nil
	}
	return &Response{Kind: KindShowText, Text: infoText(d)}
}

// selectTest returns the first questionnaire whose keywords occur in folded
func (r *Router) selectTest(folded string) *questionnaire.Definition {
	for _, id := range []questionnaire.ID{questionnaire.PSS14, questionnaire.Fisio} {
		d, err := r.engine.Definition(id)
		if err != nil {
			continue
		}
		if _, ok := textmatch.ContainsAny(folded, d.Keywords); ok {
			return d
		}
	}
	return nil
}

func (r *Router) start(st *State, id questionnaire.ID) *Response {
	if _, err := r.engine.Start(&st.Test, id); err != nil {
		return errorResponse(err)
	}
	st.LastSuggestion = ""
	if r.metrics != nil {
		r.metrics.QuestionnaireStarts.WithLabelValues(string(id)).Inc()
	}
	r.logger.Info("questionnaire started", "questionnaire", string(id), "session", st.Test.ID)
	return r.question(st, "")
}

// question renders the pending question of the running test
func (r *Router) question(st *State, notice string) *Response {
	d, err := r.engine.Definition(st.Test.Questionnaire)
	if err != nil {
		return errorResponse(err)
	}
	q, _ := r.engine.CurrentQuestion(&st.Test)
	return &Response{
		Kind:     KindShowQuestionWithChoices,
		Text:     q,
		Notice:   notice,
		Choices:  scaleChoices(d),
		Question: st.Test.Current + 1,
		Total:    len(d.Questions),
		Progress: r.engine.Progress(&st.Test),
	}
}

func (r *Router) answer(ctx context.Context, st *State, text string) *Response {
	d, err := r.engine.Definition(st.Test.Questionnaire)
	if err != nil {
		return errorResponse(err)
	}

	bare := interpret.IsBareNumber(text)
	in := interpret.Interpret(d, text)
	r.observeInterpretation(bare, in)

	switch {
	case bare && !in.Resolved:
		n, _ := strconv.Atoi(strings.TrimSpace(text))
		resp := r.question(st, "")
		oe := errors.NewOutOfRangeError(string(d.ID), n, d.ScaleMin(), d.ScaleMax())
		resp.Kind = KindShowError
		resp.Notice = OutOfRangeText(n, d.ScaleMin(), d.ScaleMax())
		resp.Err = oe
		return resp

	case in.Ambiguous:
		a, b := in.Candidates[0], in.Candidates[1]
		r.logger.Debug("ambiguous answer",
			"questionnaire", string(d.ID),
			"first", a.Value, "first_score", a.Score,
			"second", b.Value, "second_score", b.Score)
		return &Response{
			Kind: KindShowQuestionWithChoices,
			Text: AmbiguousText(a.Label, b.Label),
			Choices: []Choice{
				{Label: a.Label, Payload: strconv.Itoa(a.Value)},
				{Label: b.Label, Payload: strconv.Itoa(b.Value)},
			},
			Question: st.Test.Current + 1,
			Total:    len(d.Questions),
			Progress: r.engine.Progress(&st.Test),
			Err:      errors.NewAmbiguousAnswerError(text),
		}
	}

	notice := ""
	if !bare {
		notice = NoticeText(in.Label)
	}

	step, err := r.engine.RecordAnswer(&st.Test, in.Value)
	if err != nil {
		resp := r.question(st, "")
		resp.Kind = KindShowError
		resp.Err = err
		resp.Notice = briefError(err)
		return resp
	}

	if !step.Completed {
		return r.question(st, notice)
	}

	res := step.Result
	r.logger.Info("questionnaire completed",
		"questionnaire", string(res.Questionnaire),
		"total", res.Total,
		"level", string(res.Level))
	if r.metrics != nil {
		r.metrics.ObserveCompletion(string(res.Questionnaire), string(res.Level), res.Total, res.MaxTotal)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordResult(ctx, res); err != nil {
			r.logger.WithError(err).Warn("failed to store result")
		}
	}

	return &Response{
		Kind:     KindShowText,
		Text:     ResultText(res),
		Notice:   notice,
		Question: step.Index,
		Total:    step.Total,
		Progress: 100,
		Result:   res,
	}
}

func (r *Router) observeInterpretation(bare bool, in interpret.Interpretation) {
	if r.metrics == nil {
		return
	}
	outcome := "fuzzy"
	switch {
	case bare && !in.Resolved:
		outcome = "out_of_range"
	case bare:
		outcome = "number"
	case in.Ambiguous:
		outcome = "ambiguous"
	case in.Resolved:
		outcome = "keyword"
	}
	r.metrics.AnswerInterpretations.WithLabelValues(outcome).Inc()
}

func isAffirmative(folded string) bool {
	s := strings.Trim(folded, " ¡!¿?.,;")
	for _, a := range affirmatives {
		if s == a || strings.HasPrefix(s, a+" ") || strings.HasPrefix(s, a+",") {
			return true
		}
	}
	return false
}

func errorResponse(err error) *Response {
	return &Response{Kind: KindShowError, Text: briefError(err), Err: err}
}

// briefError renders err without the suggestion block of coded errors
func briefError(err error) string {
	var sg *errors.StressGuardError
	if !stderrors.As(err, &sg) {
		return err.Error()
	}
	if sg.Cause != nil {
		return sg.Message + ": " + sg.Cause.Error()
	}
	return sg.Message
}
