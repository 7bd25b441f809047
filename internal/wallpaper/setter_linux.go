//go:build linux

package wallpaper

import (
	"context"
	"errors"
	"net/url"
	"os/exec"
	"path/filepath"
)

// GnomeSetter sets the light and dark background URIs through gsettings.
type GnomeSetter struct {
	bin string
}

func native() (Setter, error) {
	bin, err := exec.LookPath("gsettings")
	if err != nil {
		return nil, errors.Join(ErrUnsupported, err)
	}

	return &GnomeSetter{bin: bin}, nil
}

func (s *GnomeSetter) Apply(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}

	uri := (&url.URL{Scheme: "file", Path: abs}).String()

	for _, key := range []string{"picture-uri", "picture-uri-dark"} {
		if err := run(ctx, s.bin, "set", "org.gnome.desktop.background", key, uri); err != nil {
			return &Error{Path: abs, Err: err}
		}
	}

	return nil
}
