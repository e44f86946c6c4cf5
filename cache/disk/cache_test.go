package disk

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/blake3"
)

func key(s string) []byte {
	sum := blake3.Sum256([]byte(s))
	return sum[:]
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	content := []byte("snapshot bytes")
	k := key("master.idx")
	if err := c.Put(k, content); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(k)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	name := hex.EncodeToString(k)
	path := filepath.Join(dir, name[:defaultShardPrefixLen], name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}

	if _, ok := c.Get(key("other")); ok {
		t.Fatal("Get() of unknown key ok = true, want false")
	}
}

func TestCachePutExistingIsNoop(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	k := key("a")
	if err := c.Put(k, []byte("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(k, []byte("second")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ := c.Get(k)
	if string(got) != "first" {
		t.Fatalf("Get() = %q, want %q", got, "first")
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	k := key("flat")
	if err := c.Put(k, []byte("flat")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := filepath.Join(dir, hex.EncodeToString(k))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCachePrune(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	base := time.Now().Add(-time.Hour)
	names := []string{"old", "mid", "new"}
	for i, n := range names {
		if err := c.Put(key(n), bytes.Repeat([]byte{'x'}, 100)); err != nil {
			t.Fatalf("Put(%s) error = %v", n, err)
		}
		path, _ := c.path(key(n))
		stamp := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
	}

	size, err := c.SizeBytes()
	if err != nil || size != 300 {
		t.Fatalf("SizeBytes() = %d, %v; want 300", size, err)
	}

	freed, err := c.Prune(150)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if freed != 200 {
		t.Fatalf("Prune() freed = %d, want 200", freed)
	}
	for _, n := range []string{"old", "mid"} {
		if _, ok := c.Get(key(n)); ok {
			t.Fatalf("%s survived prune", n)
		}
	}
	if _, ok := c.Get(key("new")); !ok {
		t.Fatal("newest entry was pruned")
	}
}

func TestCacheMaxBytes(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(250))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := range 5 {
		if err := c.Put(key(string(rune('a'+i))), bytes.Repeat([]byte{'y'}, 100)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	size, err := c.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes() error = %v", err)
	}
	if size > 250 {
		t.Fatalf("SizeBytes() = %d, want <= 250", size)
	}
}

func TestNewInvalid(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() with negative shard length error = nil, want error")
	}
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(nil, []byte("x")); err == nil {
		t.Fatal("Put(nil) error = nil, want error")
	}
}
