package contract

// ErrorCode is the closed vocabulary surfaced in the envelope's error.code.
type ErrorCode string

const (
	// CodeValidation marks malformed or out-of-range request fields.
	// Never retried by callers.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeUnsupportedTaskType marks a task type this agent does not serve.
	CodeUnsupportedTaskType ErrorCode = "UNSUPPORTED_TASK_TYPE"

	// CodeTaskFailed marks a downstream dependency failure (storage
	// unreachable, language bridge unreachable, collection not found,
	// budget exceeded). May be retried by the invoking system.
	CodeTaskFailed ErrorCode = "TASK_FAILED"
)

// Error is the structured error carried in a response envelope.
//
// Message must never contain ingested document content; callers that wrap
// dependency errors are responsible for keeping source text out of it.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewError builds an Error with the given code, message and details.
func NewError(code ErrorCode, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}
