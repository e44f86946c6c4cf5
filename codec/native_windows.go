//go:build windows && (amd64 || arm64)

package codec

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

type library struct {
	handle windows.Handle
}

func openLibrary(path string) (library, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return library{}, err
	}
	return library{handle: h}, nil
}

func (l library) lookup(symbol string) (uintptr, error) {
	return windows.GetProcAddress(l.handle, symbol)
}

func (l library) close() error {
	return windows.FreeLibrary(l.handle)
}

func (library) bind(fn *decompressFn, addr uintptr) {
	purego.RegisterFunc(fn, addr)
}
