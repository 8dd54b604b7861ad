package preview

import (
	"context"
	"sync"
	"time"

	"github.com/jupiterclapton/captionfeed/internal/core/domain"
	"github.com/jupiterclapton/captionfeed/internal/core/ports"
)

type memoryEntry struct {
	preview domain.Preview
	expires time.Time
}

// MemoryStore garde les aperçus en RAM (un seul process).
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]memoryEntry
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration, maxBytes int64) *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]memoryEntry),
		ttl:      ttl,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

var _ ports.PreviewStore = (*MemoryStore)(nil)

func (s *MemoryStore) Acquire(_ context.Context, img domain.Image) (*domain.Preview, error) {
	now := s.now()
	p, err := newPreview(img, s.maxBytes, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now)
	s.items[p.Handle] = memoryEntry{preview: *p, expires: now.Add(s.ttl)}
	return p, nil
}

func (s *MemoryStore) Get(_ context.Context, handle string) (*domain.Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[handle]
	if !ok || !s.now().Before(e.expires) {
		delete(s.items, handle)
		return nil, domain.ErrPreviewNotFound
	}
	p := e.preview
	return &p, nil
}

func (s *MemoryStore) Release(_ context.Context, handle string) error {
	s.mu.Lock()
	delete(s.items, handle)
	s.mu.Unlock()
	return nil
}

// Len compte les handles encore vivants.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
	return len(s.items)
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for h, e := range s.items {
		if !now.Before(e.expires) {
			delete(s.items, h)
		}
	}
}
