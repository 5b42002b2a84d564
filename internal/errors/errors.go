package errors

import "fmt"

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Error taxonomy of the core. Validation errors are rejected before any
// write occurs; StoreUnavailable may leave an orphaned id or post, which is
// garbage eligible for pruning, never corruption.
var (
	InvalidBoard     = &ErrorWithStatusCode{Message: "Board not found", StatusCode: 404}
	ThreadNotFound   = &ErrorWithStatusCode{Message: "Thread not found", StatusCode: 404}
	PostNotFound     = &ErrorWithStatusCode{Message: "Post not found", StatusCode: 404}
	TextTooLong      = &ErrorWithStatusCode{Message: "Text exceeds maximum length", StatusCode: 400}
	TextEmpty        = &ErrorWithStatusCode{Message: "Text is required", StatusCode: 400}
	ImageRequired    = &ErrorWithStatusCode{Message: "Image is required for creating threads", StatusCode: 400}
	RateLimited      = &ErrorWithStatusCode{Message: "Rate limit exceeded, try again later", StatusCode: 429}
	StoreUnavailable = &ErrorWithStatusCode{Message: "Storage temporarily unavailable", StatusCode: 503}
)

// Check if err is instance of T for custom error types
func Is[T error](err error) bool {
	if _, ok := err.(T); ok {
		return true
	}
	return false
}

// ValidationError covers malformed input rejected by collaborators
// (image validation, multipart parsing).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation error: %s", e.Message)
}
