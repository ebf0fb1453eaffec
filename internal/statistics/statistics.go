package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains all counters for a processing run.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesSucceeded      int64
	FilesFailed         int64
	ResizedImages       int64
	ThumbnailsCreated   int64

	BytesRead    int64
	BytesWritten int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// AddFilesFound increases the count of found files.
func (s *Statistics) AddFilesFound(n int) {
	atomic.AddInt64(&s.TotalFilesFound, int64(n))
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// IncrementFilesSucceeded increases the count of successfully processed files by 1.
func (s *Statistics) IncrementFilesSucceeded() {
	atomic.AddInt64(&s.FilesSucceeded, 1)
}

// IncrementFilesFailed increases the count of failed files by 1.
func (s *Statistics) IncrementFilesFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementResizedImages increases the count of resized images written by 1.
func (s *Statistics) IncrementResizedImages() {
	atomic.AddInt64(&s.ResizedImages, 1)
}

// IncrementThumbnailsCreated increases the count of thumbnails written by 1.
func (s *Statistics) IncrementThumbnailsCreated() {
	atomic.AddInt64(&s.ThumbnailsCreated, 1)
}

// AddBytesRead adds the given number of bytes to the total bytes read.
func (s *Statistics) AddBytesRead(bytes int64) {
	atomic.AddInt64(&s.BytesRead, bytes)
}

// AddBytesWritten adds the given number of bytes to the total bytes written.
func (s *Statistics) AddBytesWritten(bytes int64) {
	atomic.AddInt64(&s.BytesWritten, bytes)
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates final statistics such as duration and files per second.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// GetFilesFailed returns the total number of failed files.
func (s *Statistics) GetFilesFailed() int64 {
	return atomic.LoadInt64(&s.FilesFailed)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fmt.Sprintf(`Processing Summary:

Files:
		Found: %d
		Processed: %d
		Succeeded: %d
		Failed: %d

Outputs:
		Resized Images: %d
		Thumbnails: %d

I/O:
		Bytes Read: %s
		Bytes Written: %s

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesSucceeded),
		atomic.LoadInt64(&s.FilesFailed),
		atomic.LoadInt64(&s.ResizedImages),
		atomic.LoadInt64(&s.ThumbnailsCreated),
		formatBytes(atomic.LoadInt64(&s.BytesRead)),
		formatBytes(atomic.LoadInt64(&s.BytesWritten)),
		s.Duration,
		s.FilesPerSecond)
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
