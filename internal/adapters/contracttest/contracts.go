package contracttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	idempotencyport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
	participantrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
	triprepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
	userrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
)

type CleanupFunc = func()

// Fixture is the data set every read-only repository is seeded with before the contract runs.
// IDs are UUIDs so the Postgres adapters can store them natively.
type Fixture struct {
	Users       []domain.User
	Trips       []domain.Trip
	Memberships []participantrepoport.Membership
	Requests    []domain.ParticipationRequest
}

// Repos bundles the read-only accessors under test.
type Repos struct {
	Users        userrepoport.Repository
	Trips        triprepoport.Repository
	Participants participantrepoport.Repository
}

type ReposFactory func(t *testing.T, fx Fixture) (Repos, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Caller:   "svc-1",
		Route:    "POST /notifications/verify-email",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  202,
		ContentType: "application/json",
		Body:        []byte(`{"status":"accepted"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}

	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"status":"accepted"}` || got.ContentType != "application/json" || got.StatusCode != 202 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"status":"replayed"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"status":"replayed"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// A different caller must not see the record.
	other := fp
	other.Caller = "svc-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other caller: ok=%v err=%v", ok, err)
	}

	// Claim on an existing record leaves it untouched.
	claimed, err := store.Claim(ctx, fp, idempotencyport.Record{StatusCode: 0, ContentType: "text/plain", Body: []byte("other")})
	if err != nil || claimed {
		t.Fatalf("Claim existing: claimed=%v err=%v", claimed, err)
	}
	got, _, _ = store.Get(ctx, fp)
	if string(got.Body) != `{"status":"replayed"}` {
		t.Fatalf("Claim overwrote record: body=%q", string(got.Body))
	}

	// Concurrent claims on a fresh fingerprint: exactly one wins.
	fresh := fp
	fresh.Key = idempotencyport.Key("k-" + uuid.NewString())
	const workers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(ctx, fresh, idempotencyport.Record{ContentType: "text/plain", Body: []byte("hash"), CreatedAt: time.Unix(456, 0).UTC()})
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if n := wins.Load(); n != 1 {
		t.Fatalf("concurrent Claim winners=%d, want 1", n)
	}

	// Release frees the fingerprint for a new claim.
	if err := store.Release(ctx, fresh); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, err := store.Get(ctx, fresh); err != nil || ok {
		t.Fatalf("Get after Release: ok=%v err=%v", ok, err)
	}
	if ok, err := store.Claim(ctx, fresh, idempotencyport.Record{ContentType: "text/plain", Body: []byte("hash")}); err != nil || !ok {
		t.Fatalf("Claim after Release: claimed=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, other); err != nil {
		t.Fatalf("Release missing fingerprint: %v", err)
	}
}

// NewFixture returns a trip with a creator, two accepted participants, one pending
// requester and one rejected member.
func NewFixture() Fixture {
	creator := domain.User{ID: domain.UserID(uuid.NewString()), Name: "Carla Creator", Email: "carla@example.com"}
	alice := domain.User{ID: domain.UserID(uuid.NewString()), Name: "Alice", Email: "alice@example.com"}
	bob := domain.User{ID: domain.UserID(uuid.NewString()), Name: "Bob", Email: "bob@example.com"}
	pending := domain.User{ID: domain.UserID(uuid.NewString()), Name: "Petra", Email: "petra@example.com"}
	rejected := domain.User{ID: domain.UserID(uuid.NewString()), Name: "Rex", Email: "rex@example.com"}

	trip := domain.Trip{
		ID:        domain.TripID(uuid.NewString()),
		Title:     "Sierra Loop",
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC),
		CreatorID: creator.ID,
	}
	msg := "Can I bring my dog?"

	membership := func(u domain.User, st participantrepoport.Status) participantrepoport.Membership {
		return participantrepoport.Membership{TripID: trip.ID, UserID: u.ID, Name: u.Name, Email: u.Email, Status: st}
	}

	return Fixture{
		Users: []domain.User{creator, alice, bob, pending, rejected},
		Trips: []domain.Trip{trip},
		Memberships: []participantrepoport.Membership{
			membership(bob, participantrepoport.StatusAccepted),
			membership(creator, participantrepoport.StatusAccepted),
			membership(alice, participantrepoport.StatusAccepted),
			membership(pending, participantrepoport.StatusPending),
			membership(rejected, participantrepoport.StatusRejected),
		},
		Requests: []domain.ParticipationRequest{{
			ID:      domain.ParticipationID(uuid.NewString()),
			TripID:  trip.ID,
			UserID:  pending.ID,
			Message: &msg,
		}},
	}
}

func RunReadRepos(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	ctx := context.Background()

	fx := NewFixture()
	repos, cleanup := newRepos(t, fx)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	creator := fx.Users[0]
	trip := fx.Trips[0]

	t.Run("users", func(t *testing.T) {
		got, err := repos.Users.GetByID(ctx, creator.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got != creator {
			t.Fatalf("GetByID=%+v, want %+v", got, creator)
		}
		_, err = repos.Users.GetByID(ctx, domain.UserID(uuid.NewString()))
		if !errors.Is(err, userrepoport.ErrNotFound) {
			t.Fatalf("missing user err=%v, want ErrNotFound", err)
		}
	})

	t.Run("trips", func(t *testing.T) {
		got, err := repos.Trips.GetByID(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Title != trip.Title || got.CreatorID != trip.CreatorID {
			t.Fatalf("GetByID=%+v, want %+v", got, trip)
		}
		if !got.StartDate.Equal(trip.StartDate) || !got.EndDate.Equal(trip.EndDate) {
			t.Fatalf("dates=%s..%s, want %s..%s", got.StartDate, got.EndDate, trip.StartDate, trip.EndDate)
		}
		_, err = repos.Trips.GetByID(ctx, domain.TripID(uuid.NewString()))
		if !errors.Is(err, triprepoport.ErrNotFound) {
			t.Fatalf("missing trip err=%v, want ErrNotFound", err)
		}
	})

	t.Run("participants", func(t *testing.T) {
		got, err := repos.Participants.ListByTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListByTrip: %v", err)
		}
		// Accepted only, ordered by name.
		want := []string{"Alice", "Bob", "Carla Creator"}
		if len(got) != len(want) {
			t.Fatalf("len=%d, want %d (%+v)", len(got), len(want), got)
		}
		for i, name := range want {
			if got[i].Name != name {
				t.Fatalf("order[%d]=%q, want %q", i, got[i].Name, name)
			}
		}

		empty, err := repos.Participants.ListByTrip(ctx, domain.TripID(uuid.NewString()))
		if err != nil || len(empty) != 0 {
			t.Fatalf("ListByTrip unknown trip: len=%d err=%v", len(empty), err)
		}
	})

	t.Run("requests", func(t *testing.T) {
		want := fx.Requests[0]
		got, err := repos.Participants.GetRequest(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
		if got.ID != want.ID || got.TripID != want.TripID || got.UserID != want.UserID {
			t.Fatalf("GetRequest=%+v, want %+v", got, want)
		}
		if got.Message == nil || *got.Message != *want.Message {
			t.Fatalf("message=%v, want %q", got.Message, *want.Message)
		}
		_, err = repos.Participants.GetRequest(ctx, domain.ParticipationID(uuid.NewString()))
		if !errors.Is(err, participantrepoport.ErrNotFound) {
			t.Fatalf("missing request err=%v, want ErrNotFound", err)
		}
	})
}
