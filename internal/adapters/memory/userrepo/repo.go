package userrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.UserID]domain.User
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.UserID]domain.User),
	}
}

// Put stores or replaces a user. It exists for local runs and tests; the port itself is read-only.
func (r *Repo) Put(u domain.User) error {
	if u.ID == "" {
		return errors.New("empty user id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}
