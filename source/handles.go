package source

import (
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handles pools open FileSources keyed by path.
//
// OS handles are shared between requests because FileSource.ReadAt is
// position-free; positions live in per-request Cursors. The pool is safe for
// concurrent use and de-duplicates concurrent opens of the same path.
type Handles struct {
	mu     sync.Mutex
	open   map[string]*FileSource
	group  singleflight.Group
	logger *slog.Logger
}

// HandlesOption configures Handles.
type HandlesOption func(*Handles)

// WithHandlesLogger sets the logger used for open/close events.
func WithHandlesLogger(logger *slog.Logger) HandlesOption {
	return func(h *Handles) {
		h.logger = logger
	}
}

// NewHandles returns an empty handle pool.
func NewHandles(opts ...HandlesOption) *Handles {
	h := &Handles{open: make(map[string]*FileSource)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// log returns the logger, falling back to a discard logger if nil.
func (h *Handles) log() *slog.Logger {
	if h.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.logger
}

// Open returns the pooled FileSource for path, opening it on first use.
// Callers must not Close the returned source; use Handles.Close.
func (h *Handles) Open(path string) (*FileSource, error) {
	h.mu.Lock()
	if src, ok := h.open[path]; ok {
		h.mu.Unlock()
		return src, nil
	}
	h.mu.Unlock()

	v, err, _ := h.group.Do(path, func() (any, error) {
		h.mu.Lock()
		if src, ok := h.open[path]; ok {
			h.mu.Unlock()
			return src, nil
		}
		h.mu.Unlock()

		src, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		h.log().Debug("opened resource", "path", path, "size", src.Size())

		h.mu.Lock()
		h.open[path] = src
		h.mu.Unlock()
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileSource), nil //nolint:errcheck // type is fixed by the closure above
}

// Len returns the number of open handles.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.open)
}

// Close closes every pooled handle. The pool may be reused afterwards.
func (h *Handles) Close() error {
	h.mu.Lock()
	open := h.open
	h.open = make(map[string]*FileSource)
	h.mu.Unlock()

	var errs []error
	for path, src := range open {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
		h.log().Debug("closed resource", "path", path)
	}
	return errors.Join(errs...)
}
