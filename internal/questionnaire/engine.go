package questionnaire

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/stressguard/internal/errors"
)

// Engine drives questionnaire sessions. It holds no per-session state:
// every method takes the Session it operates on.
type Engine struct {
	defs map[ID]*Definition
	now  func() time.Time
}

// NewEngine creates an engine over the given definitions, or the built-in
// ones when none are passed
func NewEngine(defs ...*Definition) *Engine {
	m := make(map[ID]*Definition)
	if len(defs) == 0 {
		defs = All()
	}
	for _, d := range defs {
		m[d.ID] = d
	}
	return &Engine{defs: m, now: time.Now}
}

// Definition returns the definition registered under id
func (e *Engine) Definition(id ID) (*Definition, error) {
	d, ok := e.defs[id]
	if !ok {
		return nil, errors.NewQuestionnaireUnknownError(string(id))
	}
	return d, nil
}

// Definitions returns every registered definition, built-ins in their usual order
func (e *Engine) Definitions() []*Definition {
	out := make([]*Definition, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if oi, oj := order(out[i].ID), order(out[j].ID); oi != oj {
			return oi < oj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Start resets s to a fresh administration of id and returns the first question
func (e *Engine) Start(s *Session, id ID) (string, error) {
	d, err := e.Definition(id)
	if err != nil {
		return "", err
	}

	*s = Session{
		ID:            uuid.New().String(),
		Active:        true,
		Questionnaire: id,
		Current:       0,
		Answers:       make([]int, 0, len(d.Questions)),
		StartedAt:     e.now(),
	}

	q, _ := e.CurrentQuestion(s)
	return q, nil
}

// CurrentQuestion returns the display text of the current question, without
// its ordinal marker. It reports false when no question is pending.
func (e *Engine) CurrentQuestion(s *Session) (string, bool) {
	if !s.Active {
		return "", false
	}
	d, ok := e.defs[s.Questionnaire]
	if !ok || s.Current < 0 || s.Current >= len(d.Questions) {
		return "", false
	}
	return StripOrdinal(d.Questions[s.Current]), true
}

// RecordAnswer stores value for the current question and advances.
// Values outside the scale are rejected and the session is left untouched.
// When the last question is answered the session is scored and reset.
func (e *Engine) RecordAnswer(s *Session, value int) (*Step, error) {
	if !s.Active {
		return nil, errors.New(errors.ErrCodeQuestionnaireInactive, "no questionnaire in progress")
	}
	d, err := e.Definition(s.Questionnaire)
	if err != nil {
		return nil, err
	}
	if s.Current >= len(d.Questions) {
		return nil, errors.New(errors.ErrCodeQuestionnaireCompleted, "questionnaire already completed")
	}
	if !d.InScale(value) {
		return nil, errors.NewOutOfRangeError(string(d.ID), value, d.ScaleMin(), d.ScaleMax())
	}

	s.Answers = append(s.Answers, value)
	s.Current++

	step := &Step{Index: s.Current, Total: len(d.Questions)}
	if s.Current < len(d.Questions) {
		step.Next, _ = e.CurrentQuestion(s)
		return step, nil
	}

	result, err := e.score(d, s)
	if err != nil {
		return nil, err
	}
	s.Reset()

	step.Completed = true
	step.Result = result
	return step, nil
}

// Cancel abandons an active session without scoring. It reports whether
// anything was cancelled.
func (e *Engine) Cancel(s *Session) bool {
	if !s.Active {
		return false
	}
	s.Reset()
	return true
}

// Progress returns the current progress (percentage)
func (e *Engine) Progress(s *Session) float64 {
	if !s.Active {
		return 0
	}
	d, ok := e.defs[s.Questionnaire]
	if !ok || len(d.Questions) == 0 {
		return 100.0
	}
	return float64(s.Current) / float64(len(d.Questions)) * 100.0
}

// Score scores a complete answer list without a session
func (e *Engine) Score(id ID, answers []int) (*Result, error) {
	d, err := e.Definition(id)
	if err != nil {
		return nil, err
	}
	for _, v := range answers {
		if !d.InScale(v) {
			return nil, errors.NewOutOfRangeError(string(d.ID), v, d.ScaleMin(), d.ScaleMax())
		}
	}
	now := e.now()
	return e.score(d, &Session{
		ID:            uuid.New().String(),
		Questionnaire: id,
		Answers:       answers,
		StartedAt:     now,
	})
}

func (e *Engine) score(d *Definition, s *Session) (*Result, error) {
	total, scored := d.Score(s.Answers)
	fp, err := d.Fingerprint()
	if err != nil {
		return nil, err
	}

	answers := make([]int, len(s.Answers))
	copy(answers, s.Answers)

	return &Result{
		ID:            uuid.New().String(),
		SessionID:     s.ID,
		Questionnaire: d.ID,
		Name:          d.Name,
		Total:         total,
		MaxTotal:      d.MaxTotal,
		Level:         d.Band(total),
		Answers:       answers,
		Scored:        scored,
		Fingerprint:   fp,
		StartedAt:     s.StartedAt,
		CompletedAt:   e.now(),
	}, nil
}
