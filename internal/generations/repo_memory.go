package generations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps the ledger in process memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Generation
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Generation)}
}

// Create stores the generation.
func (r *MemoryRepo) Create(ctx context.Context, g Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[g.ID] = g
	return nil
}

// Get returns a generation by ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byID[id]
	if !ok {
		return Generation{}, ErrNotFound
	}
	return g, nil
}

// List returns generations newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = filter.Normalized()

	r.mu.RLock()
	out := make([]Generation, 0, len(r.byID))
	for _, g := range r.byID {
		if filter.DocType != "" && g.DocType != filter.DocType {
			continue
		}
		out = append(out, g)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return []Generation{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(out))
	return out[filter.Offset:end], nil
}

// MarkDeletedBefore flags every live generation created before cutoff.
func (r *MemoryRepo) MarkDeletedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, g := range r.byID {
		if g.DeletedAt != nil || !g.CreatedAt.Before(cutoff) {
			continue
		}
		deletedAt := at
		g.DeletedAt = &deletedAt
		r.byID[id] = g
		n++
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
