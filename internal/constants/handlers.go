// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart request size in bytes (200MB)
	MaxUploadSize = 200 << 20

	// MultipartMemory is the part of an upload kept in memory before spilling to disk
	MultipartMemory = 32 << 20
)

// Job retention constants
const (
	// MaxFinishedJobs is how many completed runs are kept before the oldest is discarded
	MaxFinishedJobs = 20
)
