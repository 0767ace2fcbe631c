package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/contracttest"
	postgres "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres"
	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

// OpenMigratedPool connects to TEST_DATABASE_URL and applies the schema.
// The test is skipped when the variable is unset so `go test ./...` stays hermetic.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

// Seed inserts a contract fixture. Membership rows take the ID of the matching
// participation request when one exists.
func Seed(t *testing.T, pool *pgxpool.Pool, fx contracttest.Fixture) {
	t.Helper()
	ctx := context.Background()

	for _, u := range fx.Users {
		if _, err := pool.Exec(ctx, `
			INSERT INTO users (external_id, name, email) VALUES ($1, $2, $3)
		`, mustUUID(t, string(u.ID)), u.Name, u.Email); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, tr := range fx.Trips {
		if _, err := pool.Exec(ctx, `
			INSERT INTO trips (external_id, title, start_date, end_date, created_by_user_id)
			VALUES ($1, $2, $3, $4, (SELECT id FROM users WHERE external_id = $5))
		`, mustUUID(t, string(tr.ID)), tr.Title, tr.StartDate, tr.EndDate, mustUUID(t, string(tr.CreatorID))); err != nil {
			t.Fatalf("seed trip: %v", err)
		}
	}

	type tripUser struct {
		trip domain.TripID
		user domain.UserID
	}
	requests := make(map[tripUser]domain.ParticipationRequest, len(fx.Requests))
	for _, r := range fx.Requests {
		requests[tripUser{trip: r.TripID, user: r.UserID}] = r
	}

	for _, m := range fx.Memberships {
		extID := uuid.New()
		var message *string
		if r, ok := requests[tripUser{trip: m.TripID, user: m.UserID}]; ok {
			extID = mustUUID(t, string(r.ID))
			message = r.Message
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO trip_participants (external_id, trip_id, user_id, status, message)
			VALUES (
				$1,
				(SELECT id FROM trips WHERE external_id = $2),
				(SELECT id FROM users WHERE external_id = $3),
				$4,
				$5
			)
		`, extID, mustUUID(t, string(m.TripID)), mustUUID(t, string(m.UserID)), string(m.Status), message); err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	if err != nil {
		t.Fatalf("invalid uuid %q: %v", s, err)
	}
	return id
}
