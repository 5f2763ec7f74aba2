package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"call-classifier/internal/classification"
)

// MemoryRepository keeps classifications in a map. A mutex guards both the
// map and the id counter so concurrent creates never share an id.
type MemoryRepository struct {
	mu     sync.Mutex
	items  map[int64]classification.Classification
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items:  make(map[int64]classification.Classification),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, data classification.ClassificationCreate) (*classification.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := classification.Classification{
		ID:        r.nextID,
		CallID:    data.CallID,
		Category:  data.Category,
		CreatedAt: r.now(),
	}
	r.items[c.ID] = c
	r.nextID++
	return &c, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*classification.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.items[id]
	if !ok {
		return nil, notFound(id)
	}
	return &c, nil
}

func (r *MemoryRepository) Update(_ context.Context, c classification.Classification) (*classification.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[c.ID]
	if !ok {
		return nil, notFound(c.ID)
	}
	// creation time is owned by the repository
	c.CreatedAt = current.CreatedAt
	r.items[c.ID] = c
	return &c, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return notFound(id)
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) FindByCallID(_ context.Context, callID string) ([]classification.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []classification.Classification
	for _, c := range r.items {
		if c.CallID == callID {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no classifications for call %q: %w", callID, classification.ErrNotFound)
	}
	sortByID(out)
	return out, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]classification.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]classification.Classification, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	sortByID(out)
	return out, nil
}

func notFound(id int64) error {
	return fmt.Errorf("classification %d: %w", id, classification.ErrNotFound)
}

func sortByID(cs []classification.Classification) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
