package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/httpapi"
	memidempotency "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/idempotency"
	memparticipantrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/participantrepo"
	memtriprepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/triprepo"
	memuserrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/userrepo"
	pgidempotency "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/idempotency"
	pgparticipantrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/participantrepo"
	postgres_testutil "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/testutil"
	pgtriprepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/triprepo"
	pguserrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/userrepo"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/templates/fsstore"
	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/clock/clocktest"
	idempotencyport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
	participantrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
	triprepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
	userrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
	"github.com/Overland-East-Bay/trip-notifier/templates"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

// outbox captures every message handed to the mail provider.
type outbox struct {
	mu   sync.Mutex
	msgs []mailerport.Message
}

func (o *outbox) Available() bool { return true }

func (o *outbox) Send(_ context.Context, msg mailerport.Message) (mailerport.Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return mailerport.Receipt{Provider: "outbox", StatusCode: 202}, nil
}

func (o *outbox) sent() []mailerport.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailerport.Message(nil), o.msgs...)
}

type testServer struct {
	baseURL string
	client  *http.Client
	fx      contracttest.Fixture
	outbox  *outbox
	issuer  *actiontoken.Issuer
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	fx := contracttest.NewFixture()
	var (
		userRepo        userrepoport.Repository
		tripRepo        triprepoport.Repository
		participantRepo participantrepoport.Repository
		idemStore       idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		postgres_testutil.Seed(t, pool, fx)
		userRepo = pguserrepo.NewRepo(pool)
		tripRepo = pgtriprepo.NewRepo(pool)
		participantRepo = pgparticipantrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case backendMemory:
		users := memuserrepo.NewRepo()
		trips := memtriprepo.NewRepo()
		participants := memparticipantrepo.NewRepo()
		for _, u := range fx.Users {
			_ = users.Put(u)
		}
		for _, tr := range fx.Trips {
			_ = trips.Put(tr)
		}
		for _, m := range fx.Memberships {
			_ = participants.PutMembership(m)
		}
		for _, r := range fx.Requests {
			_ = participants.PutRequest(r)
		}
		userRepo, tripRepo, participantRepo = users, trips, participants
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	box := &outbox{}
	issuer := actiontoken.NewIssuer("itest-secret", "trip-notifier", clocktest.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	svc := notifications.NewService(notifications.Config{
		BackendBaseURL:  "https://api.itest",
		FrontendBaseURL: "https://app.itest",
		FromAddress:     "no-reply@itest",
		FromName:        "Trip Sharing",
	}, notifications.Deps{
		Templates:    fsstore.NewFSStore(templates.FS),
		Dispatcher:   box,
		Tokens:       issuer,
		Users:        userRepo,
		Trips:        tripRepo,
		Participants: participantRepo,
	})

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// We pass empty default subject to ensure requests MUST provide X-Debug-Subject, allowing
	// auth-failure coverage.
	authMW := httpapi.NewDevAuthMiddleware("")
	handler := httpapi.NewRouter(httpapi.NewServer(svc, idemStore), httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		fx:      fx,
		outbox:  box,
		issuer:  issuer,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers map[string]string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
