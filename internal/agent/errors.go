// internal/agent/errors.go
package agent

// ErrorCode is a string type used for structured error reporting in tool
// results. Using a custom type ensures that only predefined constants can be
// used where an ErrorCode is expected.
type ErrorCode string

const (
	// -- General Execution Errors --
	ErrCodeExecutionFailure  ErrorCode = "EXECUTION_FAILURE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeUnknownTool       ErrorCode = "UNKNOWN_TOOL"
	ErrCodeBudgetExhausted   ErrorCode = "BUDGET_EXHAUSTED"

	// -- Browser/DOM Errors --
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError    ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigationError ErrorCode = "NAVIGATION_ERROR"

	// -- File System Errors --
	ErrCodeFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrCodePathForbidden ErrorCode = "PATH_FORBIDDEN"

	// -- Internal System Errors --
	ErrCodeExecutorPanic ErrorCode = "EXECUTOR_PANIC"
)

// String satisfies fmt.Stringer.
func (c ErrorCode) String() string { return string(c) }
