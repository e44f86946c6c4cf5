//go:build !((darwin || freebsd || linux || netbsd || windows) && (amd64 || arm64))

package codec

import "errors"

var errNoLoader = errors.New("runtime library loading not supported on this platform")

type library struct{}

func openLibrary(string) (library, error) {
	return library{}, errNoLoader
}

func (library) lookup(string) (uintptr, error) {
	return 0, errNoLoader
}

func (library) close() error {
	return nil
}

func (library) bind(*decompressFn, uintptr) {}
