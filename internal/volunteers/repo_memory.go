package volunteers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Volunteer
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Volunteer{}}
}

func (r *MemoryRepo) Create(ctx context.Context, v Volunteer) (Volunteer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, v.Email) {
			return Volunteer{}, ErrConflict
		}
	}
	v.IsOnline = false
	v.LastSeen = nil
	r.byID[v.ID] = v
	return v, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Volunteer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return Volunteer{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (Volunteer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.byID {
		if v.Email == email {
			return v, nil
		}
	}
	return Volunteer{}, ErrNotFound
}

func (r *MemoryRepo) SetPresence(ctx context.Context, id string, online bool, at time.Time) (Volunteer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[id]
	if !ok {
		return Volunteer{}, ErrNotFound
	}
	v.IsOnline = online
	v.LastSeen = &at
	r.byID[id] = v
	return v, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Volunteer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Volunteer, 0, len(r.byID))
	for _, v := range r.byID {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
