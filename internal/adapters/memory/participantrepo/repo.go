package participantrepo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
)

type key struct {
	tripID domain.TripID
	userID domain.UserID
}

// Repo is an in-memory implementation of participantrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu       sync.RWMutex
	members  map[key]participantrepo.Membership
	requests map[domain.ParticipationID]domain.ParticipationRequest
}

func NewRepo() *Repo {
	return &Repo{
		members:  make(map[key]participantrepo.Membership),
		requests: make(map[domain.ParticipationID]domain.ParticipationRequest),
	}
}

// PutMembership upserts a user's participation in a trip (last write wins).
func (r *Repo) PutMembership(m participantrepo.Membership) error {
	if m.TripID == "" || m.UserID == "" {
		return errors.New("membership requires trip and user ids")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[key{tripID: m.TripID, userID: m.UserID}] = m
	return nil
}

// PutRequest stores or replaces a participation request.
func (r *Repo) PutRequest(req domain.ParticipationRequest) error {
	if req.ID == "" {
		return errors.New("empty participation id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = cloneRequest(req)
	return nil
}

func (r *Repo) ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Participant, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for k, m := range r.members {
		if k.tripID != tripID || m.Status != participantrepo.StatusAccepted {
			continue
		}
		out = append(out, domain.Participant{Name: m.Name, Email: m.Email})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Email < out[j].Email
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *Repo) GetRequest(ctx context.Context, id domain.ParticipationID) (domain.ParticipationRequest, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return domain.ParticipationRequest{}, participantrepo.ErrNotFound
	}
	return cloneRequest(req), nil
}

func cloneRequest(req domain.ParticipationRequest) domain.ParticipationRequest {
	cp := req
	if req.Message != nil {
		v := *req.Message
		cp.Message = &v
	}
	return cp
}
