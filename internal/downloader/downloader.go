package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/epic_wallpaper/internal/cache"
	"github.com/italolelis/epic_wallpaper/internal/epic"
	"github.com/italolelis/epic_wallpaper/internal/telemetry"
	"github.com/schollz/progressbar/v3"
)

// ImageSource resolves a day to its images and downloads them.
// *epic.Client implements it.
type ImageSource interface {
	ListImages(ctx context.Context, date time.Time) ([]epic.ImageDescriptor, error)
	ImageURL(date time.Time, image string) string
	GrabImage(ctx context.Context, url string) ([]byte, error)
}

var _ ImageSource = (*epic.Client)(nil)

// Options configures a Downloader.
type Options struct {
	Logger    *slog.Logger
	Telemetry *telemetry.Telemetry
	// Collection labels metadata metrics.
	Collection string
	// Progress receives a progress bar while frames download. Nil disables it.
	Progress io.Writer
}

// Downloader turns a date into an ordered set of cached frames. Frames are
// downloaded one at a time, in capture order.
type Downloader struct {
	source     ImageSource
	cache      *cache.Dir
	logger     *slog.Logger
	telemetry  *telemetry.Telemetry
	collection string
	progress   io.Writer
}

func NewDownloader(source ImageSource, dir *cache.Dir, opts Options) *Downloader {
	d := &Downloader{
		source:     source,
		cache:      dir,
		logger:     opts.Logger,
		telemetry:  opts.Telemetry,
		collection: opts.Collection,
		progress:   opts.Progress,
	}

	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}

	if d.progress == nil {
		d.progress = io.Discard
	}

	return d
}

// Fetch clears the cache and downloads every image of the day into it. It
// returns the frames that downloaded, ordered by sequence index. Frames that
// fail after retries are skipped, so indices may have gaps.
//
// A metadata failure returns a *FetchError, a day without images ErrEmptyDay
// and a day where every frame failed ErrNoFrames. Cancellation returns the
// context error.
func (d *Downloader) Fetch(ctx context.Context, date time.Time) ([]cache.Frame, error) {
	day := date.Format(time.DateOnly)
	logger := d.logger.With("date", day, "fetch_id", uuid.NewString())

	logger.InfoContext(ctx, "fetching image sequence", "cache_dir", d.cache.Path())

	if _, err := d.cache.Clear(ctx, logger); err != nil {
		return nil, fmt.Errorf("failed to clear cache: %w", err)
	}

	var images []epic.ImageDescriptor

	err := d.telemetry.InstrumentMetadata(ctx, d.collection, func(ctx context.Context) error {
		var err error

		images, err = d.source.ListImages(ctx, date)

		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.InfoContext(ctx, "fetch interrupted", "stage", StageMetadata)

			return nil, ctxErr
		}

		logger.ErrorContext(ctx, "failed to fetch metadata", "err", err)
		d.telemetry.RecordFetch(ctx, "metadata_error", 0)

		return nil, &FetchError{Stage: StageMetadata, Date: day, Index: -1, Err: err}
	}

	if len(images) == 0 {
		logger.WarnContext(ctx, "no images found for this date")
		d.telemetry.RecordFetch(ctx, "empty", 0)

		return nil, ErrEmptyDay
	}

	width := cache.Width(len(images))
	frames := make([]cache.Frame, 0, len(images))
	failed := 0

	var totalBytes uint64

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("downloading "+day),
		progressbar.OptionSetWriter(d.progress),
		progressbar.OptionShowCount(),
	)

	for i, image := range images {
		frameLogger := logger.With("index", i, "image", image.Image)
		frameLogger.InfoContext(ctx, "downloading frame", "frame", fmt.Sprintf("%d/%d", i+1, len(images)))

		frame, err := d.fetchFrame(ctx, date, i, width, image)

		_ = bar.Add(1)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			frameLogger.ErrorContext(ctx, "skipping frame", "err", &FetchError{
				Stage: StageFrame, Date: day, Index: i, Image: image.Image, Err: err,
			})

			failed++

			continue
		}

		frameLogger.DebugContext(ctx, "cached frame", "path", frame.Path, "size", humanize.Bytes(uint64(frame.Size)))

		totalBytes += uint64(frame.Size)
		frames = append(frames, frame)
	}

	_ = bar.Finish()

	if len(frames) == 0 {
		logger.ErrorContext(ctx, "every frame failed to download", "images", len(images))
		d.telemetry.RecordFetch(ctx, "frames_error", 0)

		return nil, ErrNoFrames
	}

	result := "complete"
	if failed > 0 {
		result = "partial"
	}

	d.telemetry.RecordFetch(ctx, result, len(frames))

	logger.InfoContext(ctx, "download finished",
		"frames", len(frames),
		"failed", failed,
		"total_size", humanize.Bytes(totalBytes),
	)

	return frames, nil
}

func (d *Downloader) fetchFrame(ctx context.Context, date time.Time, index, width int, image epic.ImageDescriptor) (cache.Frame, error) {
	var frame cache.Frame

	err := d.telemetry.InstrumentFrameDownload(ctx, func(ctx context.Context) error {
		data, err := d.source.GrabImage(ctx, d.source.ImageURL(date, image.Image))
		if err != nil {
			return err
		}

		frame, err = d.cache.Write(index, width, image.Image, data)
		if err != nil {
			return err
		}

		d.telemetry.RecordFrameBytes(ctx, frame.Size)

		return nil
	})

	return frame, err
}
