package source

import "fmt"

// maxUserAddress bounds the user-mode address space on 64-bit targets.
const maxUserAddress = int64(1) << 47

// ProcessSource reads the address space of another process.
//
// ReadAt returns the bytes copied and an error when the range is not fully
// readable; callers going through a Cursor see ErrIOFault.
type ProcessSource struct {
	pid    int
	handle processHandle
}

// OpenProcess attaches to pid for reading. Close releases OS resources.
func OpenProcess(pid int) (*ProcessSource, error) {
	h, err := openProcessHandle(pid)
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", pid, err)
	}
	return &ProcessSource{pid: pid, handle: h}, nil
}

// ReadAt implements io.ReaderAt over virtual addresses.
func (p *ProcessSource) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off >= maxUserAddress {
		return 0, fmt.Errorf("address 0x%x outside user space", off)
	}
	return p.handle.read(b, off)
}

// Size returns the top of the user address space.
func (p *ProcessSource) Size() int64 {
	return maxUserAddress
}

// SourceID identifies the process. Process memory is live, so the ID only
// names the target; it does not imply stable content.
func (p *ProcessSource) SourceID() string {
	return fmt.Sprintf("pid:%d", p.pid)
}

// PID returns the target process id.
func (p *ProcessSource) PID() int {
	return p.pid
}

// Close releases the process handle.
func (p *ProcessSource) Close() error {
	return p.handle.close()
}

var _ ByteSource = (*ProcessSource)(nil)
