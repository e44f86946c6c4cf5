//go:build linux

package source

import (
	"errors"
	"os"
	"strconv"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// payload lives in the data segment so its address stays fixed.
var payload = []byte("live process payload\x00")

func TestProcessSourceReadsOwnMemory(t *testing.T) {
	t.Parallel()

	src, err := OpenProcess(os.Getpid())
	require.NoError(t, err)
	defer src.Close()

	addr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(payload))))

	c := NewCursor(src)
	got, err := c.ReadCString(addr, 64)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) {
		t.Skipf("process_vm_readv unavailable: %v", err)
	}
	require.NoError(t, err)
	assert.Equal(t, "live process payload", got)
	assert.Equal(t, "pid:"+strconv.Itoa(os.Getpid()), src.SourceID())

	_, err = c.ReadBytes(8, 16)
	require.ErrorIs(t, err, ErrIOFault, "the zero page is never mapped")
}
