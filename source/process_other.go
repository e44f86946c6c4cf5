//go:build !linux && !windows

package source

type processHandle struct{}

func openProcessHandle(int) (processHandle, error) {
	return processHandle{}, ErrUnsupportedPlatform
}

func (processHandle) read([]byte, int64) (int, error) {
	return 0, ErrUnsupportedPlatform
}

func (processHandle) close() error {
	return nil
}
