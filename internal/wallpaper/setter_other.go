//go:build !windows && !linux && !darwin

package wallpaper

func native() (Setter, error) {
	return nil, ErrUnsupported
}
