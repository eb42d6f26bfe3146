// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Handler constants
const (
	// DefaultHandlerPageSize is the default number of items returned by list endpoints
	DefaultHandlerPageSize = 50
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)

// Subject constants
const (
	// MaxSubjectIDLength is the maximum length of a subject identifier
	MaxSubjectIDLength = 64
)
