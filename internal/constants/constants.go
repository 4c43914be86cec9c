// Package constants provides shared constants used across the codebase.
package constants

// Pagination constants
const (
	// DefaultPageSize is the number of items fetched per PhotoPrism API page
	DefaultPageSize = 1000

	// DrivePageSize is the number of files requested per Google Drive list call
	DrivePageSize = 100

	// ResultsPageSize is the number of matched photos shown per results page
	ResultsPageSize = 12
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel scan workers
	DefaultConcurrency = 5

	// MaxImageSize is the maximum dimension (width or height) fed to the
	// fast detector; larger images are downscaled first
	MaxImageSize = 1920

	// UpsampleBelow is the longest side under which the accurate detector
	// upsamples the image once to find small faces
	UpsampleBelow = 1024

	// RegionMatchIoU is the minimum overlap for a located region to reuse
	// the descriptor the backend computed for it
	RegionMatchIoU = 0.9
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Job retention constants
const (
	// MaxFinishedJobs is how many finished scan jobs the server keeps
	MaxFinishedJobs = 20
)

// File upload constants
const (
	// MaxUploadSize is the maximum reference upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)
