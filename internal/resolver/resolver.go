package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors returned by Resolve. ErrNotFound is fatal to the whole
// invocation; ErrNoImagesFound is recoverable and reported as a warning.
var (
	ErrNotFound      = errors.New("input path does not exist")
	ErrNoImagesFound = errors.New("no image files found")
)

// Task pairs one input image file with the directory its outputs go to.
type Task struct {
	InputPath string
	OutputDir string
}

// Resolver expands an input path into processing tasks.
type Resolver struct {
	extensions map[string]struct{}
}

// New returns a Resolver recognizing the given image file extensions.
// Extensions are matched case-insensitively and must include the leading dot.
func New(extensions []string) *Resolver {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	return &Resolver{extensions: extSet}
}

// Supports reports whether the file has a recognized image extension.
func (r *Resolver) Supports(path string) bool {
	_, ok := r.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Resolve classifies path as a single file or a directory and returns one
// task per image file found. The extension allowlist filters directory
// entries only; an explicitly named file is always attempted, and the
// decode step reports it if it is not an image. Directory enumeration is
// non-recursive and covers direct children only. When outputDir is empty
// the outputs are placed alongside each input. Tasks are sorted by input
// path so batch results are deterministic.
func (r *Resolver) Resolve(path, outputDir string) ([]Task, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	if !info.IsDir() {
		out := outputDir
		if out == "" {
			out = filepath.Dir(path)
		}
		return []Task{{InputPath: path, OutputDir: out}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}

	out := outputDir
	if out == "" {
		out = path
	}

	var tasks []Task
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !r.Supports(name) {
			continue
		}
		tasks = append(tasks, Task{
			InputPath: filepath.Join(path, name),
			OutputDir: out,
		})
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImagesFound, path)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].InputPath < tasks[j].InputPath
	})
	return tasks, nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
