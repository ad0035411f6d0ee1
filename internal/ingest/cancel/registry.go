// Package cancel maps in-flight file transfers to their abort handles.
package cancel

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mediaingest/internal/common"
)

type handle struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Registry holds one abort handle per in-flight file, keyed by file name.
type Registry struct {
	mu      sync.Mutex
	handles map[string]handle
	nextID  uint64
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]handle)}
}

// Register derives a cancellable context for name from parent and stores
// its handle. The returned release func removes the handle and frees the
// context; it must be called when the transfer ends. A previous handle for
// the same name is replaced.
func (r *Registry) Register(parent context.Context, name string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handles[name] = handle{id: id, cancel: cancel}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if h, ok := r.handles[name]; ok && h.id == id {
			delete(r.handles, name)
		}
		r.mu.Unlock()
		cancel(context.Canceled)
	}
	return ctx, release
}

// HandleCancelUpload aborts the handle for name, or every handle when name
// is empty. Aborted transfers observe common.ErrUploadCancelled as the
// context cause. Returns the number of handles aborted.
func (r *Registry) HandleCancelUpload(name string) int {
	r.mu.Lock()
	var victims []context.CancelCauseFunc
	if name == "" {
		for n, h := range r.handles {
			victims = append(victims, h.cancel)
			delete(r.handles, n)
		}
	} else if h, ok := r.handles[name]; ok {
		victims = append(victims, h.cancel)
		delete(r.handles, name)
	}
	r.mu.Unlock()

	for _, c := range victims {
		c(common.ErrUploadCancelled)
	}
	return len(victims)
}

// Clear drops every handle without cancelling it.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = make(map[string]handle)
}

// Len returns the number of in-flight handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Has reports whether name has a registered handle.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[name]
	return ok
}
