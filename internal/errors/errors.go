package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Answer errors (ANSWER-001 to ANSWER-099)
	ErrCodeAnswerOutOfRange ErrorCode = "ANSWER-001"
	ErrCodeAnswerAmbiguous  ErrorCode = "ANSWER-002"

	// Questionnaire errors (QUESTIONNAIRE-001 to QUESTIONNAIRE-099)
	ErrCodeQuestionnaireUnknown   ErrorCode = "QUESTIONNAIRE-001"
	ErrCodeQuestionnaireInactive  ErrorCode = "QUESTIONNAIRE-002"
	ErrCodeQuestionnaireCompleted ErrorCode = "QUESTIONNAIRE-003"
	ErrCodeQuestionnaireCancelled ErrorCode = "QUESTIONNAIRE-004"

	// Generator errors (GENERATOR-001 to GENERATOR-099)
	ErrCodeGeneratorFailed  ErrorCode = "GENERATOR-001"
	ErrCodeGeneratorAuth    ErrorCode = "GENERATOR-002"
	ErrCodeGeneratorTimeout ErrorCode = "GENERATOR-003"
	ErrCodeGeneratorUnknown ErrorCode = "GENERATOR-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigPromptMissing ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid       ErrorCode = "CONFIG-002"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStoreFailed ErrorCode = "STORE-001"
	ErrCodeStoreOpen   ErrorCode = "STORE-002"

	// Alert errors (ALERT-001 to ALERT-099)
	ErrCodeAlertDecode  ErrorCode = "ALERT-001"
	ErrCodeAlertNetwork ErrorCode = "ALERT-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound   ErrorCode = "IO-001"
	ErrCodeFileReadFailed ErrorCode = "IO-002"
	ErrCodeFileUnmarshal  ErrorCode = "IO-005"
)

// StressGuardError represents an enhanced error with code, suggestions, and documentation
type StressGuardError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *StressGuardError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *StressGuardError) Unwrap() error {
	return e.Cause
}

// New creates a new StressGuardError
func New(code ErrorCode, message string) *StressGuardError {
	return &StressGuardError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new StressGuardError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *StressGuardError {
	return &StressGuardError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *StressGuardError) WithSuggestion(suggestion string) *StressGuardError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *StressGuardError) WithSuggestions(suggestions ...string) *StressGuardError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *StressGuardError) WithDocs(url string) *StressGuardError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first StressGuardError in err's chain,
// or "" when there is none.
func CodeOf(err error) ErrorCode {
	var sg *StressGuardError
	if stderrors.As(err, &sg) {
		return sg.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var sg *StressGuardError
		if !stderrors.As(err, &sg) {
			return false
		}
		if sg.Code == code {
			return true
		}
		err = sg.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewOutOfRangeError creates an answer-outside-scale error
func NewOutOfRangeError(questionnaire string, value, min, max int) *StressGuardError {
	return New(ErrCodeAnswerOutOfRange,
		fmt.Sprintf("answer %d is outside the %s scale (%d-%d)", value, questionnaire, min, max)).
		WithSuggestion(fmt.Sprintf("Answer with a number between %d and %d", min, max))
}

// NewAmbiguousAnswerError creates an error for answers that cannot be resolved
// to a single value
func NewAmbiguousAnswerError(text string) *StressGuardError {
	return New(ErrCodeAnswerAmbiguous, fmt.Sprintf("ambiguous answer: %q", text)).
		WithSuggestion("Pick one of the offered options")
}

// NewQuestionnaireCancelledError reports a questionnaire stopped by the user
// before its last answer
func NewQuestionnaireCancelledError(id string) *StressGuardError {
	return New(ErrCodeQuestionnaireCancelled, fmt.Sprintf("questionnaire %s cancelled", id))
}

// NewQuestionnaireUnknownError creates an unknown questionnaire error
func NewQuestionnaireUnknownError(id string) *StressGuardError {
	return New(ErrCodeQuestionnaireUnknown, fmt.Sprintf("unknown questionnaire: %s", id)).
		WithSuggestion("Run 'stressguard test --list' to see available questionnaires").
		WithSuggestion("Use one of: pss14, fisio")
}

// NewGeneratorError wraps a failure of the chat generator
func NewGeneratorError(provider string, cause error) *StressGuardError {
	return Wrap(ErrCodeGeneratorFailed, fmt.Sprintf("chat generator %s failed", provider), cause).
		WithSuggestion("Check that the model server is running and reachable").
		WithSuggestion("Run 'stressguard serve' and query /health/ready to verify connectivity")
}

// NewGeneratorAuthError creates a provider authentication error
func NewGeneratorAuthError(provider string) *StressGuardError {
	return New(ErrCodeGeneratorAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewPromptMissingError reports a system prompt that is absent or too short
func NewPromptMissingError(name string, length int) *StressGuardError {
	return New(ErrCodeConfigPromptMissing,
		fmt.Sprintf("system prompt %q is missing or too short (%d chars)", name, length)).
		WithSuggestion("Set prompts." + name + " or prompts." + name + "_file in the config file")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *StressGuardError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check stressguard.yaml against the documented keys")
}

// NewStoreError wraps a storage failure
func NewStoreError(op string, cause error) *StressGuardError {
	return Wrap(ErrCodeStoreFailed, fmt.Sprintf("store %s failed", op), cause)
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *StressGuardError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *StressGuardError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
