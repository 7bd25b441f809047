package downloader

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDay is returned when the metadata endpoint lists no images for
	// the date.
	ErrEmptyDay = errors.New("no images found for this date")
	// ErrNoFrames is returned when the day has images but none could be
	// downloaded.
	ErrNoFrames = errors.New("no frame could be downloaded")
)

const (
	StageMetadata = "metadata"
	StageFrame    = "frame"
)

// FetchError reports a request that failed after every retry.
type FetchError struct {
	Stage string // StageMetadata or StageFrame
	Date  string // Requested day, YYYY-MM-DD
	Index int    // Sequence index of the frame, -1 for metadata
	Image string // EPIC image identifier, empty for metadata
	Err   error  // Underlying error
}

func (e *FetchError) Error() string {
	if e.Stage == StageFrame {
		return fmt.Sprintf("failed to fetch frame %d (%s) for %s: %v", e.Index, e.Image, e.Date, e.Err)
	}

	return fmt.Sprintf("failed to fetch %s for %s: %v", e.Stage, e.Date, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
