package preview

import (
	"context"
	"sync"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/observability"
)

// MemoryRegistry keeps preview payloads in process memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]models.Attachment
}

// NewMemoryRegistry constructs an empty in-process registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]models.Attachment)}
}

func (r *MemoryRegistry) Issue(_ context.Context, attachment models.Attachment) (string, error) {
	handle := newHandle()
	stored := attachment.Clone()
	stored.Fresh = false

	r.mu.Lock()
	r.entries[handle] = *stored
	r.mu.Unlock()

	observability.PreviewHandles().Inc()
	return handle, nil
}

func (r *MemoryRegistry) Resolve(_ context.Context, handle string) (models.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attachment, ok := r.entries[handle]
	if !ok {
		return models.Attachment{}, ErrHandleNotFound
	}
	return attachment, nil
}

// Release forgets the handle. Releasing an unknown handle is a no-op.
func (r *MemoryRegistry) Release(_ context.Context, handle string) error {
	r.mu.Lock()
	_, ok := r.entries[handle]
	delete(r.entries, handle)
	r.mu.Unlock()

	if ok {
		observability.PreviewHandles().Dec()
	}
	return nil
}

// Len returns the number of live handles.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
