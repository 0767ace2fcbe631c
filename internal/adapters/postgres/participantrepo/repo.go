package participantrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
)

// Repo is a Postgres implementation of participantrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Participant, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(tripID))
	if err != nil {
		return []domain.Participant{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT u.name, u.email
		FROM trip_participants tp
		JOIN trips tr ON tr.id = tp.trip_id
		JOIN users u ON u.id = tp.user_id
		WHERE tr.external_id = $1
		  AND tp.status = $2
		ORDER BY u.name ASC, u.email ASC
	`, tripUUID, string(participantrepo.StatusAccepted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.Name, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetRequest(ctx context.Context, id domain.ParticipationID) (domain.ParticipationRequest, error) {
	if r.pool == nil {
		return domain.ParticipationRequest{}, errors.New("nil postgres pool")
	}
	reqUUID, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ParticipationRequest{}, participantrepo.ErrNotFound
	}

	var (
		extID   uuid.UUID
		tripID  uuid.UUID
		userID  uuid.UUID
		message *string
	)
	err = r.pool.QueryRow(ctx, `
		SELECT tp.external_id, tr.external_id, u.external_id, tp.message
		FROM trip_participants tp
		JOIN trips tr ON tr.id = tp.trip_id
		JOIN users u ON u.id = tp.user_id
		WHERE tp.external_id = $1
	`, reqUUID).Scan(&extID, &tripID, &userID, &message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ParticipationRequest{}, participantrepo.ErrNotFound
		}
		return domain.ParticipationRequest{}, err
	}
	return domain.ParticipationRequest{
		ID:      domain.ParticipationID(extID.String()),
		TripID:  domain.TripID(tripID.String()),
		UserID:  domain.UserID(userID.String()),
		Message: message,
	}, nil
}
