// Package wallpaper sets the desktop background. Each platform has a native
// Setter; a user-supplied command can replace it on any platform.
package wallpaper

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by New when the platform has no native setter
// and no command is configured.
var ErrUnsupported = errors.New("no wallpaper setter for this platform")

// Setter applies an image file as the desktop background.
type Setter interface {
	Apply(ctx context.Context, path string) error
}

// SetterFunc adapts a function to Setter.
type SetterFunc func(ctx context.Context, path string) error

func (f SetterFunc) Apply(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Error reports a background that could not be applied.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to set wallpaper to %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the setter for this platform, or a CommandSetter when command
// is not empty.
func New(command string) (Setter, error) {
	if strings.TrimSpace(command) != "" {
		return NewCommandSetter(command)
	}

	return native()
}

// CommandSetter runs an external program with the image path appended as
// its last argument, e.g. "feh --bg-fill".
type CommandSetter struct {
	name string
	args []string
}

func NewCommandSetter(command string) (*CommandSetter, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty wallpaper command")
	}

	return &CommandSetter{name: fields[0], args: fields[1:]}, nil
}

func (s *CommandSetter) Apply(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}

	args := append(append([]string(nil), s.args...), abs)

	if err := run(ctx, s.name, args...); err != nil {
		return &Error{Path: abs, Err: err}
	}

	return nil
}

// run executes a command and folds its output into the error on failure.
func run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}

		return fmt.Errorf("%s: %w", name, err)
	}

	return nil
}
