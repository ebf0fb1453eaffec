package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mikeh74/imgop/internal/config"
	"github.com/mikeh74/imgop/internal/inspector"
	"github.com/mikeh74/imgop/internal/logger"
	"github.com/mikeh74/imgop/internal/processor"
	"github.com/mikeh74/imgop/internal/resolver"
	"github.com/mikeh74/imgop/internal/statistics"
	"github.com/mikeh74/imgop/internal/transform"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	outputDir    string
	quality      int
	thumbQuality int
	maxDimension int
	thumbSize    int
	workers      int

	scalePct    float64
	widthPx     int
	heightPx    int
	sizeStr     string
	cropSizeStr string
	cropAspect  string
	cropPercent float64
	formatStr   string
	grayscale   bool
	thumbOnly   bool
)

// errBatchFailed marks errors that should exit with status 1 (per-file
// failures). Everything else Execute returns exits with status 2.
var errBatchFailed = errors.New("batch failed")

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "imgop <path>",
	Short: "Batch image resizing and thumbnail generation",
	Long: `imgop resizes images to fit within bounds while preserving aspect
ratio and generates square thumbnails.

By default each input image produces two outputs next to it (or in the
directory given with -o): <name>_md.jpg resized to fit the maximum
dimension, and <name>_sq_thumb.jpg, a square thumbnail.

Custom transforms replace the default outputs:
  imgop photo.jpg --scale 50            # half size
  imgop photo.jpg --width 800           # resize to width, keep aspect
  imgop photo.jpg --size 1920x1080      # exact size
  imgop photo.jpg --crop-size 800x600   # center crop
  imgop photo.jpg --crop-aspect 16:9    # crop to aspect ratio
  imgop photo.jpg --format png --bw     # grayscale PNG
  imgop photo.jpg --thumb               # square thumbnail only

Directories are processed non-recursively; one bad file never aborts the
batch. Exit status is 0 when every file succeeded, 1 when any file failed,
2 on invalid arguments or a missing input path.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd, args[0])
	},
}

// infoCmd prints image metadata without writing anything.
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show image dimensions and EXIF metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: same as input)")
	rootCmd.Flags().IntVarP(&quality, "quality", "q", 85, "output quality for JPEG (1-100)")
	rootCmd.Flags().IntVarP(&thumbQuality, "thumbnail-quality", "t", 70, "JPEG quality for thumbnails (1-100)")
	rootCmd.Flags().IntVar(&maxDimension, "max-dimension", 1200, "maximum edge length of resized images")
	rootCmd.Flags().IntVar(&thumbSize, "thumb-size", 300, "edge length of square thumbnails")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (default from config)")

	rootCmd.Flags().Float64Var(&scalePct, "scale", 0, "scale image by percentage (e.g. 50 for 50%)")
	rootCmd.Flags().IntVar(&widthPx, "width", 0, "resize to specific width (height calculated automatically)")
	rootCmd.Flags().IntVar(&heightPx, "height", 0, "resize to specific height (width calculated automatically)")
	rootCmd.Flags().StringVar(&sizeStr, "size", "", "resize to WIDTHxHEIGHT (e.g. 1920x1080)")
	rootCmd.Flags().StringVar(&cropSizeStr, "crop-size", "", "crop to WIDTHxHEIGHT from center")
	rootCmd.Flags().StringVar(&cropAspect, "crop-aspect", "", "crop to aspect ratio from center (e.g. 16:9)")
	rootCmd.Flags().Float64Var(&cropPercent, "crop-percent", 0, "crop to percentage of original size from center")
	rootCmd.Flags().StringVar(&formatStr, "format", "", "output format (jpeg, png, gif, bmp, tiff)")
	rootCmd.Flags().BoolVar(&grayscale, "bw", false, "convert image to grayscale")
	rootCmd.Flags().BoolVar(&thumbOnly, "thumb", false, "create square thumbnail only")

	rootCmd.AddCommand(infoCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.AutomaticEnv()
}

// runProcess executes the main processing logic.
func runProcess(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	spec, err := buildTransform()
	if err != nil {
		return err
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()

	proc, err := processor.New(cfg, processor.Options{
		Transform:     spec,
		ThumbnailOnly: thumbOnly,
	}, stats, log)
	if err != nil {
		return err
	}

	results, err := proc.ProcessPath(context.Background(), path, outputDir)
	if err != nil {
		if errors.Is(err, resolver.ErrNoImagesFound) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			return nil
		}
		if errors.Is(err, resolver.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", errBatchFailed, err)
	}

	failed := 0
	for _, res := range results {
		if res.Success {
			if !quiet {
				fmt.Printf("ok   %s -> %s\n", res.InputPath, outputList(res))
			}
		} else {
			failed++
			fmt.Fprintf(os.Stderr, "fail %s: %s\n", res.InputPath, res.Message)
		}
	}

	stats.Finalize()
	if !quiet {
		fmt.Printf("\nProcessed %d files: %d succeeded, %d failed\n",
			len(results), len(results)-failed, failed)
		if verbose {
			fmt.Println("\n" + stats.GetSummary())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files failed", errBatchFailed, failed, len(results))
	}
	return nil
}

// runInfo prints metadata for a single image file.
func runInfo(path string) error {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	info, err := inspector.New(log).Inspect(path)
	if err != nil {
		return err
	}

	fmt.Printf("File:        %s\n", info.Path)
	fmt.Printf("Format:      %s\n", info.Format)
	fmt.Printf("Dimensions:  %dx%d\n", info.Width, info.Height)
	if info.DateTime != nil {
		fmt.Printf("Date:        %s\n", info.DateTime.Format("2006-01-02 15:04:05"))
	}
	if info.Orientation > 0 {
		fmt.Printf("Orientation: %d\n", info.Orientation)
	}
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies flag values into the config. Only flags the
// user actually set override config-file values; flag defaults never do.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) {
	if flags.Changed("quality") {
		cfg.Processing.Quality = quality
	}
	if flags.Changed("thumbnail-quality") {
		cfg.Processing.ThumbnailQuality = thumbQuality
	}
	if flags.Changed("max-dimension") {
		cfg.Processing.MaxDimension = maxDimension
	}
	if flags.Changed("thumb-size") {
		cfg.Processing.ThumbnailSize = thumbSize
	}
	if flags.Changed("workers") && workers > 0 {
		cfg.Performance.WorkerThreads = workers
	}
}

// buildTransform assembles the custom transform spec from CLI flags.
// Returns nil when no custom transform flags were given.
func buildTransform() (*transform.Spec, error) {
	spec := &transform.Spec{
		Scale:       scalePct,
		Width:       widthPx,
		Height:      heightPx,
		CropAspect:  cropAspect,
		CropPercent: cropPercent,
		Format:      formatStr,
		Grayscale:   grayscale,
	}

	if sizeStr != "" {
		dims, err := transform.ParseDimensions(sizeStr)
		if err != nil {
			return nil, err
		}
		spec.Size = dims
	}
	if cropSizeStr != "" {
		dims, err := transform.ParseDimensions(cropSizeStr)
		if err != nil {
			return nil, err
		}
		spec.CropSize = dims
	}

	if spec.IsZero() {
		return nil, nil
	}
	if thumbOnly {
		return nil, fmt.Errorf("cannot combine --thumb with transform options")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// outputList formats the produced output paths for the status line.
func outputList(res processor.Result) string {
	switch {
	case res.ResizedPath != "" && res.ThumbnailPath != "":
		return res.ResizedPath + ", " + res.ThumbnailPath
	case res.ResizedPath != "":
		return res.ResizedPath
	default:
		return res.ThumbnailPath
	}
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose && !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errBatchFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
