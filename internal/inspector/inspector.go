package inspector

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// Info describes an image file without decoding its pixels.
type Info struct {
	Path        string
	Format      string
	Width       int
	Height      int
	DateTime    *time.Time
	Orientation int // EXIF orientation tag, 0 when absent
}

// Inspector reads image dimensions and EXIF metadata. Lookups are cached
// by path, size and modification time.
type Inspector struct {
	logger *logrus.Logger
	cache  sync.Map
}

// New returns a new Inspector.
func New(logger *logrus.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect returns metadata for the image at path.
func (i *Inspector) Inspect(path string) (*Info, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	key := cacheKey(path, fileInfo)
	if cached, ok := i.cache.Load(key); ok {
		info := cached.(Info)
		return &info, nil
	}

	info, err := i.read(path)
	if err != nil {
		return nil, err
	}

	i.cache.Store(key, *info)
	return info, nil
}

func (i *Inspector) read(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	info := &Info{
		Path:   path,
		Format: strings.ToUpper(format),
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	// EXIF is optional; most PNGs and GIFs carry none.
	if _, err := file.Seek(0, 0); err == nil {
		i.readEXIF(file, info)
	}

	return info, nil
}

// readEXIF fills in DateTime and Orientation when EXIF data is present.
func (i *Inspector) readEXIF(file *os.File, info *Info) {
	x, err := exif.Decode(file)
	if err != nil {
		i.logger.Debugf("no EXIF data for %s: %v", info.Path, err)
		return
	}

	if tm, err := x.DateTime(); err == nil {
		info.DateTime = &tm
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if orientation, err := tag.Int(0); err == nil {
			info.Orientation = orientation
		}
	}
}

func cacheKey(path string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", path, fileInfo.Size(), fileInfo.ModTime().Unix())
}
