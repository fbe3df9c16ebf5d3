package memory

import (
	"context"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type UserDirectory struct {
	mu    sync.RWMutex
	users map[domain.UserID]domain.User
}

var _ core.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[domain.UserID]domain.User)}
}

// Put inserts or replaces a user record.
func (d *UserDirectory) Put(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *UserDirectory) Delete(id domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *UserDirectory) FindByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (d *UserDirectory) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *UserDirectory) SetStateCode(_ context.Context, id domain.UserID, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.StateCode = code
	d.users[id] = u
	return nil
}
