//go:build windows

package wallpaper

import (
	"context"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	spiSetDeskWallpaper = 0x0014
	spifUpdateIniFile   = 0x01
	spifSendChange      = 0x02
)

var (
	user32                    = windows.NewLazySystemDLL("user32.dll")
	procSystemParametersInfoW = user32.NewProc("SystemParametersInfoW")
)

// SystemSetter sets the background through SystemParametersInfoW.
type SystemSetter struct{}

func native() (Setter, error) {
	if err := procSystemParametersInfoW.Find(); err != nil {
		return nil, err
	}

	return SystemSetter{}, nil
}

func (SystemSetter) Apply(_ context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{Path: path, Err: err}
	}

	p, err := windows.UTF16PtrFromString(abs)
	if err != nil {
		return &Error{Path: abs, Err: err}
	}

	r1, _, callErr := procSystemParametersInfoW.Call(
		spiSetDeskWallpaper,
		0,
		uintptr(unsafe.Pointer(p)),
		spifUpdateIniFile|spifSendChange,
	)
	if r1 == 0 {
		return &Error{Path: abs, Err: callErr}
	}

	return nil
}
