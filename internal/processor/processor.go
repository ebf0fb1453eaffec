package processor

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors recorded in per-file results. Neither aborts a batch.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrWriteFailed       = errors.New("failed to write output")
)

// Result describes the outcome of processing a single file.
type Result struct {
	InputPath     string
	ResizedPath   string
	ThumbnailPath string
	Action        string
	Message       string
	Success       bool
	StartedAt     time.Time
	FinishedAt    time.Time
	Error         error
}

// Processor defines the interface for batch image processing.
type Processor interface {
	// ProcessImage resizes a single image and writes the outputs into
	// outputDir (the input's own directory when empty).
	ProcessImage(ctx context.Context, inputPath, outputDir string) Result

	// ProcessDirectory processes every supported image directly inside dir.
	// One file's failure never aborts the batch; results are ordered by
	// input path.
	ProcessDirectory(ctx context.Context, dir, outputDir string) ([]Result, error)

	// ProcessPath inspects path and delegates to ProcessImage or
	// ProcessDirectory.
	ProcessPath(ctx context.Context, path, outputDir string) ([]Result, error)
}
