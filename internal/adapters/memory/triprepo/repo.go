package triprepo

import (
	"context"
	"errors"
	"sync"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
)

// Repo is an in-memory implementation of triprepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.TripID]domain.Trip
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.TripID]domain.Trip),
	}
}

// Put stores or replaces a trip snapshot.
func (r *Repo) Put(t domain.Trip) error {
	if t.ID == "" {
		return errors.New("empty trip id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = t
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (domain.Trip, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.Trip{}, triprepo.ErrNotFound
	}
	return t, nil
}
