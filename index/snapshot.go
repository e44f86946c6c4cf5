package index

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// SnapshotStore persists parsed container tables between runs.
//
// Get reports ok=false on a miss. Implementations must be safe for
// concurrent use.
type SnapshotStore interface {
	Get(key string) (snap *Snapshot, ok bool, err error)
	Put(key string, snap *Snapshot) error
}

// Snapshot is the serializable form of a parsed graph. Directories are not
// stored; they are re-derived from the master index location on restore.
type Snapshot struct {
	Schema     Schema              `cbor:"1,keyasint"`
	Containers []SnapshotContainer `cbor:"2,keyasint"`
}

// SnapshotContainer is one container inside a Snapshot.
type SnapshotContainer struct {
	IndexName string   `cbor:"1,keyasint"`
	Resources []string `cbor:"2,keyasint"`
	Entries   []Entry  `cbor:"3,keyasint"`
}

func newSnapshot(schema Schema, containers []*Container) *Snapshot {
	s := &Snapshot{Schema: schema, Containers: make([]SnapshotContainer, len(containers))}
	for i, c := range containers {
		s.Containers[i] = SnapshotContainer{
			IndexName: c.IndexName,
			Resources: c.Resources,
			Entries:   c.Entries,
		}
	}
	return s
}

func (s *Snapshot) restore(dir string) []*Container {
	out := make([]*Container, len(s.Containers))
	for i, sc := range s.Containers {
		out[i] = &Container{
			ID:        i,
			Dir:       dir,
			IndexName: sc.IndexName,
			Resources: sc.Resources,
			Entries:   sc.Entries,
		}
	}
	return out
}

// snapshotKey hashes the master index bytes together with the size and
// modification time of every container index it references.
func snapshotKey(master []byte, containers []*Container) (string, error) {
	h := blake3.New()
	h.Write(master) //nolint:errcheck // hash writes never fail
	var buf [16]byte
	for _, c := range containers {
		info, err := os.Stat(c.IndexPath())
		if err != nil {
			return "", fmt.Errorf("stat container index %d: %w", c.ID, err)
		}
		binary.LittleEndian.PutUint64(buf[0:], uint64(info.Size()))
		binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
		h.Write([]byte(c.IndexName)) //nolint:errcheck // hash writes never fail
		h.Write(buf[:])              //nolint:errcheck // hash writes never fail
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
