package questionnaire

import "time"

// ID identifies a questionnaire definition
type ID string

const (
	PSS14 ID = "pss14"
	Fisio ID = "fisio"
)

// Level is the qualitative band a total score falls into
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
)

// Spanish returns the label shown to end users
func (l Level) Spanish() string {
	switch l {
	case LevelLow:
		return "BAJO"
	case LevelModerate:
		return "MODERADO"
	case LevelHigh:
		return "ALTO"
	default:
		return string(l)
	}
}

// Option is one point of an answer scale
type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Band maps an inclusive total range to a level
type Band struct {
	Min   int   `json:"min"`
	Max   int   `json:"max"`
	Level Level `json:"level"`
}

// Session is one administration of a questionnaire.
// It is owned by the caller and passed to every Engine method.
type Session struct {
	ID            string    `json:"id"`
	Active        bool      `json:"active"`
	Questionnaire ID        `json:"questionnaire"`
	Current       int       `json:"current"` // Index of current question
	Answers       []int     `json:"answers"`
	StartedAt     time.Time `json:"started_at"`
}

// Reset returns the session to the inactive, empty state
func (s *Session) Reset() {
	*s = Session{}
}

// Step describes what happened after an answer was recorded
type Step struct {
	// Next is the next question text, empty when the test completed
	Next      string
	Index     int
	Total     int
	Completed bool
	Result    *Result
}

// Result is a scored administration
type Result struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Questionnaire ID        `json:"questionnaire"`
	Name          string    `json:"name"`
	Total         int       `json:"total"`
	MaxTotal      int       `json:"max_total"`
	Level         Level     `json:"level"`
	Answers       []int     `json:"answers"`
	Scored        []int     `json:"scored"`
	Fingerprint   string    `json:"fingerprint"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}
