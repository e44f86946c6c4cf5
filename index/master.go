package index

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/meigma/assetlift/internal/binio"
)

// maxContainers bounds the container table so a corrupt count cannot force
// a huge allocation before the per-record reads fail.
const maxContainers = 1 << 16

// ParseMaster decodes a master index. Resource and index names are resolved
// relative to dir. The returned containers carry no entries yet.
func ParseMaster(data []byte, dir string) (Schema, []*Container, error) {
	r := binio.NewReader(data, binary.BigEndian)
	magic := r.U32()
	version := Schema(r.U16())
	if err := r.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: master header: %w", ErrFormat, err)
	}
	if magic != MasterMagic {
		return 0, nil, fmt.Errorf("%w: master magic 0x%08x", ErrFormat, magic)
	}

	var (
		containers []*Container
		err        error
	)
	switch version {
	case SchemaA:
		containers, err = parseSchemaA(r, dir)
	case SchemaB:
		r.SetOrder(binary.LittleEndian)
		containers, err = parseSchemaB(r, dir)
	default:
		return 0, nil, fmt.Errorf("%w: master version %d", ErrFormat, uint16(version))
	}
	if err != nil {
		return 0, nil, err
	}
	if err := r.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: master index: %w", ErrFormat, err)
	}
	return version, containers, nil
}

// parseSchemaA reads the container pairs, the flat resource table and the
// shared resource table. Every container starts with its own resource.
func parseSchemaA(r *binio.Reader, dir string) ([]*Container, error) {
	// Each pair holds at least two length prefixes.
	count := r.Count(4)
	if count > maxContainers {
		return nil, fmt.Errorf("%w: %d containers", ErrFormat, count)
	}
	containers := make([]*Container, 0, count)
	for i := range count {
		c := &Container{ID: i, Dir: dir, IndexName: r.Str16()}
		c.addResource(r.Str16())
		containers = append(containers, c)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: container table: %w", ErrFormat, err)
	}

	lookup := func(id uint32) (*Container, error) {
		if uint64(id) >= uint64(len(containers)) {
			return nil, fmt.Errorf("%w: container id %d of %d", ErrFormat, id, len(containers))
		}
		return containers[id], nil
	}

	flat := r.Count(6)
	for range flat {
		name := r.Str16()
		id := r.U32()
		if r.Err() != nil {
			break
		}
		c, err := lookup(id)
		if err != nil {
			return nil, err
		}
		c.addResource(name)
	}

	shared := r.Count(4)
	for range shared {
		name := r.Str16()
		n := r.U16()
		for range n {
			id := r.U32()
			if r.Err() != nil {
				break
			}
			c, err := lookup(id)
			if err != nil {
				return nil, err
			}
			c.addResource(name)
		}
	}
	return containers, nil
}

// parseSchemaB reads the lone container.
func parseSchemaB(r *binio.Reader, dir string) ([]*Container, error) {
	c := &Container{ID: 0, Dir: dir, IndexName: r.Str16()}
	count := r.Count(2)
	for range count {
		name := r.Str16()
		if r.Err() != nil {
			break
		}
		c.addResource(name)
	}
	return []*Container{c}, nil
}

func joinPath(dir, name string) string {
	return filepath.Join(dir, filepath.FromSlash(name))
}
