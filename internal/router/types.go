package router

import (
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
)

// Kind tags what the presentation layer should render
type Kind string

const (
	// KindShowText is a plain assistant message
	KindShowText Kind = "show_text"
	// KindShowQuestionWithChoices is a question with selectable answers
	KindShowQuestionWithChoices Kind = "show_question_with_choices"
	// KindShowError is an inline error bubble
	KindShowError Kind = "show_error"
	// KindForwardToChat carries the chat generator's reply
	KindForwardToChat Kind = "forward_to_chat"
	// KindExit asks the caller to end the conversation
	KindExit Kind = "exit"
	// KindHandoff asks the caller to switch to an external tool
	KindHandoff Kind = "handoff"
)

// SuggestionMenu marks that the last reply offered the test menu
const SuggestionMenu = "menu"

// HandoffTruthTable is the Target of the tablaverdad handoff
const HandoffTruthTable = "tablaverdad"

// Choice is a selectable action. Sending Payload back as a message selects it.
type Choice struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Response is the outcome of one HandleMessage call
type Response struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`

	// Notice is shown before Text, e.g. how a free-text answer was read
	Notice  string   `json:"notice,omitempty"`
	Choices []Choice `json:"choices,omitempty"`

	// Question is the 1-based number of the question in Text, 0 when none
	Question int     `json:"question,omitempty"`
	Total    int     `json:"total,omitempty"`
	Progress float64 `json:"progress,omitempty"`

	Result *questionnaire.Result `json:"result,omitempty"`
	Target string                `json:"target,omitempty"`

	// Err is the underlying failure of a KindShowError response
	Err error `json:"-"`
}

// State is one conversation. It is owned by a single caller and must not be
// shared between concurrent conversations.
type State struct {
	// LastSuggestion is SuggestionMenu after the test menu was offered
	LastSuggestion string `json:"last_suggestion,omitempty"`

	// GuidanceMode stays on once set until a memory reset
	GuidanceMode bool `json:"guidance_mode"`

	History []provider.Message    `json:"history,omitempty"`
	Test    questionnaire.Session `json:"test"`
}

// NewState returns an empty conversation
func NewState() *State {
	return &State{}
}

// ClearMemory drops history, guidance mode and the suggestion marker.
// An administration in progress is kept.
func (s *State) ClearMemory() {
	s.History = nil
	s.GuidanceMode = false
	s.LastSuggestion = ""
}
