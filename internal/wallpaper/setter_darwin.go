//go:build darwin

package wallpaper

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
)

// FinderSetter asks System Events to change every desktop's picture.
type FinderSetter struct{}

func native() (Setter, error) {
	return FinderSetter{}, nil
}

func (FinderSetter) Apply(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}

	script := fmt.Sprintf(`tell application "System Events" to tell every desktop to set picture to %s`, strconv.Quote(abs))

	if err := run(ctx, "osascript", "-e", script); err != nil {
		return &Error{Path: abs, Err: err}
	}

	return nil
}
