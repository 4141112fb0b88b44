package tools

// Status indicates tool execution outcome.
type Status string

const (
	// StatusSuccess indicates the tool completed its operation.
	StatusSuccess Status = "success"

	// StatusError indicates a domain failure the model should read and
	// react to. Domain failures are data, not Go errors: the handler
	// returns (errorResult, nil) so the dispatch loop feeds the outcome
	// back to the model instead of aborting the turn.
	StatusError Status = "error"
)

// Error kinds for model consumption. The kind tells the model whether to fix
// its arguments (validation), inform the user (not_found, conflict) or give
// up (internal).
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindInternal   = "internal"
)

// Error is the structured failure payload of an error result.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the uniform envelope every tool returns. Exactly one of Data and
// Error is populated, discriminated by Status.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Success builds a success result carrying data.
func Success(message string, data any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds an error result of the given kind.
func Failure(kind, message string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
		Error:   &Error{Kind: kind, Message: message},
	}
}
