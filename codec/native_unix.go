//go:build (darwin || freebsd || linux || netbsd) && (amd64 || arm64)

package codec

import "github.com/ebitengine/purego"

type library struct {
	handle uintptr
}

func openLibrary(path string) (library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return library{}, err
	}
	return library{handle: h}, nil
}

func (l library) lookup(symbol string) (uintptr, error) {
	return purego.Dlsym(l.handle, symbol)
}

func (l library) close() error {
	return purego.Dlclose(l.handle)
}

func (library) bind(fn *decompressFn, addr uintptr) {
	purego.RegisterFunc(fn, addr)
}
