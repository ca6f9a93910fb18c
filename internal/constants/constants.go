// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face detection constants
const (
	// DedupeIoUThreshold is the Intersection over Union above which two detections
	// are considered the same face and the less confident one is dropped
	DedupeIoUThreshold = 0.5

	// MaxDetectSide is the maximum dimension (width or height) sent to the detector.
	// Larger images are downscaled and boxes are mapped back to source pixels.
	MaxDetectSide = 1600
)

// Search constants
const (
	// DefaultTopK is the number of candidates kept by `search --index` when --top-k is unset
	DefaultTopK = 10
)

// File upload constants
const (
	// MaxUploadSize is the maximum size of a multipart upload (32 MB)
	MaxUploadSize = 32 << 20
)

// HTTP server constants
const (
	// RequestTimeout bounds a single API request, detection and extraction included
	RequestTimeout = 5 // minutes

	// ShutdownTimeout is how long `serve` waits for in-flight requests on exit
	ShutdownTimeout = 10 // seconds
)
