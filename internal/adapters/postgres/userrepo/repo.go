package userrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	userUUID, err := uuid.Parse(string(id))
	if err != nil {
		// Not a UUID means it cannot exist in this table.
		return domain.User{}, userrepo.ErrNotFound
	}

	var (
		extID uuid.UUID
		u     domain.User
	)
	err = r.pool.QueryRow(ctx, `
		SELECT external_id, name, email
		FROM users
		WHERE external_id = $1
	`, userUUID).Scan(&extID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = domain.UserID(extID.String())
	return u, nil
}
