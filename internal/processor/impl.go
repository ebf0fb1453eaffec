package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/mikeh74/imgop/internal/config"
	"github.com/mikeh74/imgop/internal/logger"
	"github.com/mikeh74/imgop/internal/resolver"
	"github.com/mikeh74/imgop/internal/statistics"
	"github.com/mikeh74/imgop/internal/transform"
)

// Output filename suffixes. The convention is fixed so callers can predict
// where outputs land: <name>_md.jpg for the resized image, <name>_sq_thumb.jpg
// for the thumbnail, <name>_sm.jpg in thumbnail-only mode.
const (
	resizedSuffix   = "_md"
	thumbnailSuffix = "_sq_thumb"
	thumbOnlySuffix = "_sm"
)

// Options selects the processing mode.
type Options struct {
	// Transform replaces the default resize+thumbnail pair with a single
	// custom operation. Nil or zero means default mode.
	Transform *transform.Spec

	// ThumbnailOnly writes only the square thumbnail.
	ThumbnailOnly bool
}

// DefaultProcessor is the default implementation of the Processor interface.
type DefaultProcessor struct {
	cfg      *config.Config
	opts     Options
	resolver *resolver.Resolver
	stats    *statistics.Statistics
	logger   *logrus.Logger
}

// New creates a DefaultProcessor. Quality and transform settings are
// validated here, before any file I/O happens.
func New(cfg *config.Config, opts Options, stats *statistics.Statistics, log *logrus.Logger) (*DefaultProcessor, error) {
	if err := cfg.Processing.Validate(); err != nil {
		return nil, err
	}
	if opts.Transform != nil {
		if err := opts.Transform.Validate(); err != nil {
			return nil, err
		}
		if opts.Transform.IsZero() {
			opts.Transform = nil
		}
	}
	if log == nil {
		log = logrus.New()
	}
	return &DefaultProcessor{
		cfg:      cfg,
		opts:     opts,
		resolver: resolver.New(cfg.SupportedExtensions),
		stats:    stats,
		logger:   log,
	}, nil
}

// ProcessPath inspects path and processes either the single file or every
// supported image directly inside the directory.
func (p *DefaultProcessor) ProcessPath(ctx context.Context, path, outputDir string) ([]Result, error) {
	tasks, err := p.resolver.Resolve(path, outputDir)
	if err != nil {
		return nil, err
	}
	return p.processTasks(ctx, tasks), nil
}

// ProcessDirectory processes all supported images directly inside dir.
func (p *DefaultProcessor) ProcessDirectory(ctx context.Context, dir, outputDir string) ([]Result, error) {
	if !resolver.IsDir(dir) {
		return nil, fmt.Errorf("%w: %s is not a directory", resolver.ErrNotFound, dir)
	}
	return p.ProcessPath(ctx, dir, outputDir)
}

// processTasks runs the worker pool over the resolved tasks. Results keep
// the task order regardless of which worker finishes first.
func (p *DefaultProcessor) processTasks(ctx context.Context, tasks []resolver.Task) []Result {
	if p.stats != nil {
		p.stats.AddFilesFound(len(tasks))
	}

	numWorkers := p.cfg.Performance.WorkerThreads
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	type job struct {
		index int
		task  resolver.Task
	}
	type indexed struct {
		index int
		res   Result
	}

	jobs := make(chan job, len(tasks))
	results := make(chan indexed, len(tasks))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					results <- indexed{index: j.index, res: cancelledResult(j.task.InputPath, ctx.Err())}
					continue
				default:
				}
				r := p.ProcessImage(ctx, j.task.InputPath, j.task.OutputDir)
				results <- indexed{index: j.index, res: r}
			}
		}()
	}

	for i, task := range tasks {
		jobs <- job{index: i, task: task}
	}
	close(jobs)

	wg.Wait()
	close(results)

	resArr := make([]Result, len(tasks))
	for r := range results {
		resArr[r.index] = r.res
	}
	return resArr
}

// ProcessImage processes a single image file and returns a Result. Errors
// are recorded in the result, never propagated, so directory batches always
// run to completion.
func (p *DefaultProcessor) ProcessImage(ctx context.Context, inputPath, outputDir string) Result {
	res := Result{
		InputPath: inputPath,
		StartedAt: time.Now(),
	}
	log := logger.WithFileOperation(p.logger, inputPath, "process")

	if p.stats != nil {
		p.stats.IncrementFilesProcessed()
	}

	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}

	if info, err := os.Stat(inputPath); err == nil && p.stats != nil {
		p.stats.AddBytesRead(info.Size())
	}

	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return p.fail(res, log, "decode", fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, inputPath, err))
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return p.fail(res, log, "mkdir", fmt.Errorf("%w: %v", ErrWriteFailed, err))
	}

	name := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	switch {
	case p.opts.ThumbnailOnly:
		thumbPath := filepath.Join(outputDir, name+thumbOnlySuffix+".jpg")
		if err := p.saveImage(p.makeThumbnail(img), thumbPath, inputPath, p.cfg.Processing.ThumbnailQuality); err != nil {
			return p.fail(res, log, "save thumbnail", err)
		}
		res.ThumbnailPath = thumbPath
		if p.stats != nil {
			p.stats.IncrementThumbnailsCreated()
		}

	case p.opts.Transform != nil:
		outPath := filepath.Join(outputDir, name+p.opts.Transform.Suffix()+p.opts.Transform.Extension())
		if err := p.saveImage(p.opts.Transform.Apply(img), outPath, inputPath, p.cfg.Processing.Quality); err != nil {
			return p.fail(res, log, "save transformed", err)
		}
		res.ResizedPath = outPath
		if p.stats != nil {
			p.stats.IncrementResizedImages()
		}

	default:
		resizedPath := filepath.Join(outputDir, name+resizedSuffix+".jpg")
		if err := p.saveImage(p.makeResized(img), resizedPath, inputPath, p.cfg.Processing.Quality); err != nil {
			return p.fail(res, log, "save resized", err)
		}
		res.ResizedPath = resizedPath

		thumbPath := filepath.Join(outputDir, name+thumbnailSuffix+".jpg")
		if err := p.saveImage(p.makeThumbnail(img), thumbPath, inputPath, p.cfg.Processing.ThumbnailQuality); err != nil {
			return p.fail(res, log, "save thumbnail", err)
		}
		res.ThumbnailPath = thumbPath

		if p.stats != nil {
			p.stats.IncrementResizedImages()
			p.stats.IncrementThumbnailsCreated()
		}
	}

	res.Action = "processed"
	res.Message = "OK"
	res.Success = true
	res.FinishedAt = time.Now()
	if p.stats != nil {
		p.stats.IncrementFilesSucceeded()
	}
	log.Debug("image processed")
	return res
}

// makeResized scales the image to fit within the configured maximum
// dimension, preserving aspect ratio. Images already within bounds are
// returned unchanged, never upscaled.
func (p *DefaultProcessor) makeResized(img image.Image) image.Image {
	max := p.cfg.Processing.MaxDimension
	b := img.Bounds()
	if b.Dx() <= max && b.Dy() <= max {
		return img
	}
	return imaging.Fit(img, max, max, imaging.Lanczos)
}

// makeThumbnail center-crops the image to a square of the shorter side,
// then scales it to the configured thumbnail edge length.
func (p *DefaultProcessor) makeThumbnail(img image.Image) image.Image {
	b := img.Bounds()
	edge := b.Dx()
	if b.Dy() < edge {
		edge = b.Dy()
	}
	square := imaging.CropCenter(img, edge, edge)
	return imaging.Resize(square, p.cfg.Processing.ThumbnailSize, p.cfg.Processing.ThumbnailSize, imaging.Lanczos)
}

// saveImage encodes the image and writes it via a temporary file followed
// by a rename. The output path must never equal the input path.
func (p *DefaultProcessor) saveImage(img image.Image, outPath, inputPath string, quality int) error {
	if filepath.Clean(outPath) == filepath.Clean(inputPath) {
		return fmt.Errorf("%w: refusing to overwrite input %s", ErrWriteFailed, inputPath)
	}

	format, err := imaging.FormatFromFilename(outPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrWriteFailed, outPath, err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if p.stats != nil {
		p.stats.AddBytesWritten(int64(buf.Len()))
	}
	return nil
}

// cancelledResult marks a task the batch never got to because the context
// was cancelled. Every task always yields a result with its input path set.
func cancelledResult(inputPath string, err error) Result {
	now := time.Now()
	return Result{
		InputPath:  inputPath,
		Action:     "cancelled",
		Message:    err.Error(),
		StartedAt:  now,
		FinishedAt: now,
		Error:      err,
	}
}

// fail finalizes a result with an error.
func (p *DefaultProcessor) fail(res Result, log *logrus.Entry, operation string, err error) Result {
	res.Action = "error"
	res.Message = err.Error()
	res.Error = err
	res.FinishedAt = time.Now()
	if p.stats != nil {
		p.stats.IncrementFilesFailed()
		p.stats.AddError(res.InputPath, operation, err.Error())
	}
	log.WithField("operation", operation).Warnf("processing failed: %v", err)
	return res
}
