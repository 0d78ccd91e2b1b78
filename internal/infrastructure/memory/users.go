package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tuition-notify/internal/domain"
)

// Directory is an in-memory user directory.
type Directory struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewDirectory(users ...domain.User) *Directory {
	d := &Directory{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *Directory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) FindByID(_ context.Context, userID string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// FindByIDs returns the known users among ids; unknown ids are skipped.
func (d *Directory) FindByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *Directory) FindByRole(_ context.Context, role string) ([]domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) UpdatePreferences(_ context.Context, userID string, upd domain.PreferenceUpdate) (*domain.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u = upd.Apply(u)
	d.users[userID] = u
	return &u, nil
}
