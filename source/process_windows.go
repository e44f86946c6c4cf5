//go:build windows

package source

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type processHandle struct {
	h windows.Handle
}

func openProcessHandle(pid int) (processHandle, error) {
	h, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid)) //nolint:gosec // pids fit in uint32
	if err != nil {
		return processHandle{}, err
	}
	return processHandle{h: h}, nil
}

func (h processHandle) read(b []byte, off int64) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(h.h, uintptr(off), unsafe.SliceData(b), uintptr(len(b)), &n)
	return int(n), err //nolint:gosec // n <= len(b)
}

func (h processHandle) close() error {
	return windows.CloseHandle(h.h)
}
