// Package cache manages the frame cache directory: a flat directory of images
// named by their zero-padded sequence index, so that listing order,
// lexicographic order and capture order agree.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	// MinWidth is the narrowest index padding ("00", "01", ...).
	MinWidth = 2
)

// Frame is an image cached for one position of the day's sequence.
type Frame struct {
	Index int    // Position in the capture order
	Path  string // Absolute path of the cached file
	Image string // EPIC image identifier it was downloaded from
	Size  int64  // Bytes on disk
}

// Paths returns the paths of frames in order.
func Paths(frames []Frame) []string {
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.Path
	}

	return paths
}

// Dir is a cache directory holding frames. New frames share one extension.
type Dir struct {
	path string
	ext  string
	// exts lists every extension a frame from any run may have, ext first.
	exts []string
}

// Open resolves path to an absolute directory, creating it if needed. ext is
// the extension new frames are written with; others are extensions earlier
// runs may have used, cleared along with ext. Extensions may carry a dot.
func Open(path, ext string, others ...string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	d := &Dir{path: abs, ext: strings.TrimPrefix(ext, ".")}
	d.exts = []string{d.ext}

	for _, o := range others {
		if o = strings.TrimPrefix(o, "."); o != "" && !slices.Contains(d.exts, o) {
			d.exts = append(d.exts, o)
		}
	}

	return d, nil
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Width returns the index padding needed so that all n frame names have the
// same length. It is never below MinWidth.
func Width(n int) int {
	width := len(strconv.Itoa(max(n-1, 0)))

	return max(width, MinWidth)
}

// FrameName returns the file name for index padded to width.
func (d *Dir) FrameName(index, width int) string {
	return fmt.Sprintf("%0*d.%s", width, index, d.ext)
}

// IsFrame reports whether name follows the frame naming convention: at least
// MinWidth digits followed by one of the frame extensions the directory knows.
func (d *Dir) IsFrame(name string) bool {
	stem, ext, ok := strings.Cut(name, ".")
	if !ok || len(stem) < MinWidth || !slices.Contains(d.extensions(), ext) {
		return false
	}

	for _, r := range stem {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func (d *Dir) extensions() []string {
	if len(d.exts) == 0 {
		return []string{d.ext}
	}

	return d.exts
}

// Clear removes every frame file from the directory. Anything not named like
// a frame, and any subdirectory, is left alone.
func (d *Dir) Clear(ctx context.Context, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache dir: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !d.IsFrame(entry.Name()) {
			continue
		}

		filePath := filepath.Join(d.path, entry.Name())
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.ErrorContext(ctx, "failed to delete cached frame", "file", filePath, "err", err)

			return removed, fmt.Errorf("failed to delete cached frame: %w", err)
		}

		removed++
	}

	logger.DebugContext(ctx, "cleared frame cache", "dir", d.path, "removed", removed)

	return removed, nil
}

// Write stores data as the frame at index and returns it.
func (d *Dir) Write(index, width int, image string, data []byte) (Frame, error) {
	filePath := filepath.Join(d.path, d.FrameName(index, width))

	if err := os.WriteFile(filePath, data, filePerm); err != nil {
		_ = os.Remove(filePath)

		return Frame{}, fmt.Errorf("failed to write frame %d: %w", index, err)
	}

	return Frame{Index: index, Path: filePath, Image: image, Size: int64(len(data))}, nil
}
