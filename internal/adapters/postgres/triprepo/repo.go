package triprepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
)

// Repo is a Postgres implementation of triprepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (domain.Trip, error) {
	if r.pool == nil {
		return domain.Trip{}, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Trip{}, triprepo.ErrNotFound
	}

	var (
		extID     uuid.UUID
		creatorID uuid.UUID
		title     string
		start     pgtype.Date
		end       pgtype.Date
	)
	err = r.pool.QueryRow(ctx, `
		SELECT tr.external_id, tr.title, tr.start_date, tr.end_date, creator.external_id
		FROM trips tr
		JOIN users creator ON creator.id = tr.created_by_user_id
		WHERE tr.external_id = $1
	`, tripUUID).Scan(&extID, &title, &start, &end, &creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trip{}, triprepo.ErrNotFound
		}
		return domain.Trip{}, err
	}

	return domain.Trip{
		ID:        domain.TripID(extID.String()),
		Title:     title,
		StartDate: dateToTime(start),
		EndDate:   dateToTime(end),
		CreatorID: domain.UserID(creatorID.String()),
	}, nil
}

func dateToTime(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	t := d.Time.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
