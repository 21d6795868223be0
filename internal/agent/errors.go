package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the iteration driver and its collaborators.
var (
	// ErrMaxIterations indicates the driver exhausted max_iterations
	// without the model producing a final answer.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrContextCancelled indicates the run's context was cancelled.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoProvider indicates no model capability provider is configured.
	ErrNoProvider = errors.New("no model provider configured")

	// ErrNoTools indicates the driver was started with an empty tool
	// registry when the caller required at least one tool.
	ErrNoTools = errors.New("no tools registered")

	// ErrToolNotFound indicates a requested tool name isn't registered.
	ErrToolNotFound = errors.New("tool not found")
)

// ConfigurationError reports a setup problem discovered before a run can
// start: missing model credentials, or no tools registered when the
// caller required at least one.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ModelError reports a failure from the Model Capability adapter: a
// transport error, an auth failure, a timeout, or malformed structured
// output. It is fatal for the reason step that produced it.
type ModelError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model error (%s): %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("model error (%s): %s", e.Provider, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// ToolError reports a failure raised by a tool invocation. It is always
// non-fatal to the run: the driver journals it as a failed result and
// surfaces a ToolError event, then continues the loop.
type ToolError struct {
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %q failed: %s: %v", e.ToolName, e.Message, e.Cause)
	}
	return fmt.Sprintf("tool %q failed: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError wraps cause as a ToolError for the named tool invocation.
func NewToolError(toolName string, cause error) *ToolError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &ToolError{ToolName: toolName, Message: msg, Cause: cause}
}

// IsToolError reports whether err is or wraps a *ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// PersistenceKind distinguishes the severity a persistence failure is
// handled with: some stages are fatal to the run, others are logged and
// swallowed so the run can continue with degraded state.
type PersistenceKind string

const (
	// PersistenceSessionAppend is fatal: a session history gap would
	// corrupt every later turn's context.
	PersistenceSessionAppend PersistenceKind = "session_append"

	// PersistenceToolContextSave is logged and swallowed: losing one
	// cached tool result only costs a future re-fetch.
	PersistenceToolContextSave PersistenceKind = "tool_context_save"

	// PersistenceScratchpadAppend is fatal: the scratchpad journal is
	// the ground truth for one query's work.
	PersistenceScratchpadAppend PersistenceKind = "scratchpad_append"
)

// Fatal reports whether a failure of this persistence kind must abort the
// run rather than be logged and swallowed.
func (k PersistenceKind) Fatal() bool {
	switch k {
	case PersistenceSessionAppend, PersistenceScratchpadAppend:
		return true
	default:
		return false
	}
}

// PersistenceError reports an I/O or serialization failure from one of the
// persistence stores.
type PersistenceError struct {
	Kind    PersistenceKind
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persistence error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("persistence error (%s): %s", e.Kind, e.Message)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// InvalidInputError reports a malformed session key or skill front-matter,
// rejected at the boundary of the session-key normaliser or skill
// registry rather than reaching the loop.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input (%s): %s", e.Field, e.Message)
}

// LimitAdvisory is not an error in the propagation sense: the driver
// attaches it as a ToolLimit event and as an inline note appended to the
// next iteration's prompt. It satisfies the error interface only so it can
// travel through the same plumbing as a tool result.
type LimitAdvisory struct {
	ToolName string
	Warning  string
}

func (a *LimitAdvisory) Error() string { return a.Warning }
