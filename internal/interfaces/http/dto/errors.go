package dto

// Error code constants
// Format: ERR_<CATEGORY>_<DESCRIPTION>

const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeUnauthorized is used when no marketplace session exists
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeUpstream is used when the marketplace rejected an operation
	ErrCodeUpstream = "ERR_UPSTREAM"
)
