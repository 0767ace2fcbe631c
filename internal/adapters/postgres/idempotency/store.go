package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM notifier_idempotency_keys
		WHERE idempotency_key = $1
		  AND caller = $2
		  AND route = $3
		  AND body_hash = $4
	`,
		string(fp.Key),
		fp.Caller,
		fp.Route,
		fp.BodyHash,
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, wrapSchemaError(err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifier_idempotency_keys (
			idempotency_key,
			caller,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (idempotency_key, caller, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`,
		string(fp.Key),
		fp.Caller,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		createdAt.UTC(),
	)
	return wrapSchemaError(err)
}

func (s *Store) Claim(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (bool, error) {
	if s.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifier_idempotency_keys (
			idempotency_key,
			caller,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (idempotency_key, caller, route, body_hash) DO NOTHING
	`,
		string(fp.Key),
		fp.Caller,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		createdAt.UTC(),
	)
	if err != nil {
		return false, wrapSchemaError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Release(ctx context.Context, fp idempotency.Fingerprint) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM notifier_idempotency_keys
		WHERE idempotency_key = $1
		  AND caller = $2
		  AND route = $3
		  AND body_hash = $4
	`,
		string(fp.Key),
		fp.Caller,
		fp.Route,
		fp.BodyHash,
	)
	return wrapSchemaError(err)
}

func wrapSchemaError(err error) error {
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UndefinedTableCode {
		return fmt.Errorf("notifier_idempotency_keys is missing (apply schema.sql): %w", err)
	}
	return err
}
