package notifications_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/mail/disabled"
	memparticipantrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/participantrepo"
	memtriprepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/triprepo"
	memuserrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/userrepo"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/templates/fsstore"
	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/clock/clocktest"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

const (
	backendURL  = "https://api.trips.test"
	frontendURL = "https://trips.test"
)

var testTemplates = fstest.MapFS{
	"verify_email.html":        {Data: []byte(`<p>Hi {{name}} ({{email}})</p><a href="{{verificationLink}}">verify</a>`)},
	"trip_dates_modified.html": {Data: []byte(`<p>Hi {{participantName}}: {{tripTitle}} moved from {{oldStartDate}}-{{oldEndDate}} to {{newStartDate}}-{{newEndDate}}. {{tripLink}}</p>`)},
	"pending_request.html":     {Data: []byte(`<p>{{creatorName}}: {{requesterName}} <{{requesterEmail}}> wants {{tripTitle}} ({{tripLink}})</p><q>{{message}}</q><a href="{{acceptLink}}">yes</a><a href="{{rejectLink}}">no</a>`)},
}

type fakeDispatcher struct {
	mu        sync.Mutex
	available bool
	sent      []mailerport.Message
	fail      map[string]error
	panicOn   map[string]bool

	delay       time.Duration
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{available: true, fail: map[string]error{}, panicOn: map[string]bool{}}
}

func (f *fakeDispatcher) Available() bool { return f.available }

func (f *fakeDispatcher) Send(_ context.Context, msg mailerport.Message) (mailerport.Receipt, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[msg.To] {
		panic("boom: " + msg.To)
	}
	if err := f.fail[msg.To]; err != nil {
		return mailerport.Receipt{}, err
	}
	f.sent = append(f.sent, msg)
	return mailerport.Receipt{Provider: "fake", MessageID: fmt.Sprintf("m-%d", len(f.sent)), StatusCode: 202}, nil
}

func (f *fakeDispatcher) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

func (f *fakeDispatcher) messages() []mailerport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailerport.Message(nil), f.sent...)
}

type harness struct {
	svc          *notifications.Service
	dispatcher   mailerport.Dispatcher
	fake         *fakeDispatcher
	issuer       *actiontoken.Issuer
	clock        *clocktest.FakeClock
	users        *memuserrepo.Repo
	trips        *memtriprepo.Repo
	participants *memparticipantrepo.Repo
	fx           contracttest.Fixture
	logs         *observer.ObservedLogs
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	cfg        notifications.Config
	dispatcher mailerport.Dispatcher
	secret     string
	templates  fstest.MapFS
}

func withDispatcher(d mailerport.Dispatcher) harnessOption {
	return func(c *harnessConfig) { c.dispatcher = d }
}

func withSecret(s string) harnessOption {
	return func(c *harnessConfig) { c.secret = s }
}

func withTemplates(fsys fstest.MapFS) harnessOption {
	return func(c *harnessConfig) { c.templates = fsys }
}

func withMaxConcurrentSends(n int) harnessOption {
	return func(c *harnessConfig) { c.cfg.MaxConcurrentSends = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	fake := newFakeDispatcher()
	hc := harnessConfig{
		cfg: notifications.Config{
			BackendBaseURL:  backendURL + "/",
			FrontendBaseURL: frontendURL,
			FromAddress:     "no-reply@trips.test",
			FromName:        "Trips",
		},
		dispatcher: fake,
		secret:     "test-secret",
		templates:  testTemplates,
	}
	for _, o := range opts {
		o(&hc)
	}

	fx := contracttest.NewFixture()
	users := memuserrepo.NewRepo()
	trips := memtriprepo.NewRepo()
	participants := memparticipantrepo.NewRepo()
	for _, u := range fx.Users {
		require.NoError(t, users.Put(u))
	}
	for _, tr := range fx.Trips {
		require.NoError(t, trips.Put(tr))
	}
	for _, m := range fx.Memberships {
		require.NoError(t, participants.PutMembership(m))
	}
	for _, r := range fx.Requests {
		require.NoError(t, participants.PutRequest(r))
	}

	clk := clocktest.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	issuer := actiontoken.NewIssuer(hc.secret, "trip-notifier", clk)

	core, logs := observer.New(zapcore.DebugLevel)
	svc := notifications.NewService(hc.cfg, notifications.Deps{
		Templates:    fsstore.NewFSStore(hc.templates),
		Dispatcher:   hc.dispatcher,
		Tokens:       issuer,
		Users:        users,
		Trips:        trips,
		Participants: participants,
		Logger:       zap.New(core),
	})

	return &harness{
		svc:          svc,
		dispatcher:   hc.dispatcher,
		fake:         fake,
		issuer:       issuer,
		clock:        clk,
		users:        users,
		trips:        trips,
		participants: participants,
		fx:           fx,
		logs:         logs,
	}
}

func (h *harness) creator() domain.User { return h.fx.Users[0] }
func (h *harness) trip() domain.Trip    { return h.fx.Trips[0] }

func tokenFromLink(t *testing.T, html, prefix string) string {
	t.Helper()
	i := strings.Index(html, prefix)
	require.GreaterOrEqual(t, i, 0, "link with prefix %q not found in %q", prefix, html)
	rest := html[i+len(prefix):]
	if j := strings.IndexAny(rest, `"<`); j >= 0 {
		rest = rest[:j]
	}
	tok, err := url.QueryUnescape(rest)
	require.NoError(t, err)
	return tok
}

func movedTrip(tr domain.Trip) domain.Trip {
	out := tr
	out.StartDate = tr.StartDate.AddDate(0, 0, 7)
	out.EndDate = tr.EndDate.AddDate(0, 0, 7)
	return out
}

// --- SendTripUpdateNotification ---

func TestSendTripUpdateNotification_ExcludesCreator(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	participants := []domain.Participant{
		{Name: "Carla Creator", Email: "carla@example.com"},
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	}

	res := h.svc.SendTripUpdateNotification(context.Background(), participants, h.trip(), movedTrip(h.trip()), "  CARLA@example.com ")
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.Total)
	assert.Empty(t, res.Failures)
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, h.fake.sentTo())
}

func TestSendTripUpdateNotification_RendersPerRecipient(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	participants := []domain.Participant{{Name: "  Alice   Smith ", Email: "alice@example.com"}}

	res := h.svc.SendTripUpdateNotification(context.Background(), participants, h.trip(), movedTrip(h.trip()), h.creator().Email)
	require.NotNil(t, res)

	msgs := h.fake.messages()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "Trip dates updated: Sierra Loop", m.Subject)
	assert.Equal(t, "no-reply@trips.test", m.From)
	assert.Equal(t, "Trips", m.FromName)
	assert.Contains(t, m.HTML, "Hi Alice Smith:")
	assert.Contains(t, m.HTML, "from Monday, June 1, 2026-Thursday, June 4, 2026")
	assert.Contains(t, m.HTML, "to Monday, June 8, 2026-Thursday, June 11, 2026")
	assert.Contains(t, m.HTML, frontendURL+"/trips/"+string(h.trip().ID))
	assert.NotContains(t, m.HTML, "{{")
}

func TestSendTripUpdateNotification_EmptyParticipants(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	assert.NotPanics(t, func() {
		res := h.svc.SendTripUpdateNotification(context.Background(), nil, h.trip(), movedTrip(h.trip()), h.creator().Email)
		assert.Nil(t, res)
	})
	assert.Empty(t, h.fake.sentTo())
	assert.Equal(t, 1, h.logs.FilterMessage("no participants to notify").Len())
}

func TestSendTripUpdateNotification_OnlyCreator(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	res := h.svc.SendTripUpdateNotification(context.Background(),
		[]domain.Participant{{Name: "Carla", Email: "carla@example.com"}},
		h.trip(), movedTrip(h.trip()), "carla@example.com")
	assert.Nil(t, res)
	assert.Empty(t, h.fake.sentTo())
}

func TestSendTripUpdateNotification_PartialFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cause := errors.New("provider timeout")
	h.fake.fail["bob@example.com"] = cause

	participants := []domain.Participant{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	}
	res := h.svc.SendTripUpdateNotification(context.Background(), participants, h.trip(), movedTrip(h.trip()), h.creator().Email)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bob@example.com", res.Failures[0].Email)
	assert.ErrorIs(t, res.Failures[0].Err, cause)

	failed := h.logs.FilterMessage("trip update email failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "bob@example.com", failed[0].ContextMap()["to"])
}

func TestSendTripUpdateNotification_PanickingSendCountsAsFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fake.panicOn["alice@example.com"] = true

	participants := []domain.Participant{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob", Email: "bob@example.com"},
	}
	var res *notifications.BatchResult
	require.NotPanics(t, func() {
		res = h.svc.SendTripUpdateNotification(context.Background(), participants, h.trip(), movedTrip(h.trip()), "")
	})
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"bob@example.com"}, h.fake.sentTo())
}

func TestSendTripUpdateNotification_DispatcherUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withDispatcher(disabled.New()))
	res := h.svc.SendTripUpdateNotification(context.Background(),
		[]domain.Participant{{Name: "Alice", Email: "alice@example.com"}},
		h.trip(), movedTrip(h.trip()), "")
	assert.Nil(t, res)
	assert.Equal(t, 1, h.logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestSendTripUpdateNotification_TemplateMissingIsSwallowed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withTemplates(fstest.MapFS{}))
	var res *notifications.BatchResult
	require.NotPanics(t, func() {
		res = h.svc.SendTripUpdateNotification(context.Background(),
			[]domain.Participant{{Name: "Alice", Email: "alice@example.com"}},
			h.trip(), movedTrip(h.trip()), "")
	})
	assert.Nil(t, res)
	assert.Empty(t, h.fake.sentTo())

	entries := h.logs.FilterMessage("trip update notification not sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(notifications.KindTemplateUnavailable), entries[0].ContextMap()["kind"])
}

func TestSendTripUpdateNotification_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withMaxConcurrentSends(2))
	h.fake.delay = 20 * time.Millisecond

	var participants []domain.Participant
	for i := 0; i < 6; i++ {
		participants = append(participants, domain.Participant{Name: fmt.Sprintf("P%d", i), Email: fmt.Sprintf("p%d@example.com", i)})
	}
	res := h.svc.SendTripUpdateNotification(context.Background(), participants, h.trip(), movedTrip(h.trip()), "")
	require.NotNil(t, res)
	assert.Equal(t, 6, res.Sent)
	assert.LessOrEqual(t, h.fake.maxInflight.Load(), int32(2))
}

// --- SendPendingRequestEmail ---

func TestSendPendingRequestEmail_SendsToCreatorWithActionLinks(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	req := h.fx.Requests[0]

	rec, err := h.svc.SendPendingRequestEmail(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "fake", rec.Provider)

	msgs := h.fake.messages()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, h.creator().Email, m.To)
	assert.Equal(t, "New request to join Sierra Loop", m.Subject)
	assert.Contains(t, m.HTML, "Carla Creator: Petra <petra@example.com> wants Sierra Loop")
	assert.Contains(t, m.HTML, "<q>Can I bring my dog?</q>")

	prefix := backendURL + "/api/participants/" + string(req.ID) + "/action?token="
	html := m.HTML
	acceptAt := strings.Index(html, `<a href="`+prefix)
	require.GreaterOrEqual(t, acceptAt, 0)
	accept := tokenFromLink(t, html[acceptAt:], prefix)
	rejectAt := strings.LastIndex(html, `<a href="`+prefix)
	reject := tokenFromLink(t, html[rejectAt:], prefix)
	assert.NotEqual(t, accept, reject)

	p, err := h.issuer.Verify(accept, actiontoken.PurposeParticipationAction)
	require.NoError(t, err)
	assert.Equal(t, string(req.ID), p.SubjectID)
	assert.Equal(t, domain.ParticipationAccepted, p.Action)

	p, err = h.issuer.Verify(reject, actiontoken.PurposeParticipationAction)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipationRejected, p.Action)

	h.clock.Advance(7*24*time.Hour + time.Minute)
	_, err = h.issuer.Verify(accept, actiontoken.PurposeParticipationAction)
	assert.ErrorIs(t, err, actiontoken.ErrExpired)
}

func TestSendPendingRequestEmail_MessageFallbackAndEscaping(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	req := h.fx.Requests[0]
	req.Message = nil
	_, err := h.svc.SendPendingRequestEmail(context.Background(), req)
	require.NoError(t, err)

	evil := `<img src=x onerror=alert(1)>`
	req.Message = &evil
	_, err = h.svc.SendPendingRequestEmail(context.Background(), req)
	require.NoError(t, err)

	msgs := h.fake.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].HTML, "<q>"+notifications.MessageFallback+"</q>")
	assert.Contains(t, msgs[1].HTML, "<q>&lt;img src=x onerror=alert(1)&gt;</q>")
}

func TestSendPendingRequestEmail_MissingEntitiesAreNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	base := h.fx.Requests[0]

	cases := map[string]func(r *domain.ParticipationRequest){
		"requester": func(r *domain.ParticipationRequest) { r.UserID = "missing-user" },
		"trip":      func(r *domain.ParticipationRequest) { r.TripID = "missing-trip" },
	}
	for name, mutate := range cases {
		req := base
		mutate(&req)
		rec, err := h.svc.SendPendingRequestEmail(context.Background(), req)
		require.NoError(t, err, name)
		assert.Equal(t, mailerport.Receipt{}, rec, name)
	}

	orphan := h.trip()
	orphan.ID = "orphan-trip"
	orphan.CreatorID = "ghost"
	require.NoError(t, h.trips.Put(orphan))
	req := base
	req.TripID = orphan.ID
	_, err := h.svc.SendPendingRequestEmail(context.Background(), req)
	require.NoError(t, err, "creator")

	assert.Empty(t, h.fake.sentTo())
	assert.Equal(t, 3, h.logs.FilterMessage("pending request email skipped; entity not found").Len())
}

func TestSendPendingRequestEmail_DispatchFailureIsReturned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cause := fmt.Errorf("%w: sendgrid status 401", mailerport.ErrRejected)
	h.fake.fail[h.creator().Email] = cause

	_, err := h.svc.SendPendingRequestEmail(context.Background(), h.fx.Requests[0])
	require.Error(t, err)

	var ne *notifications.Error
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, notifications.KindDispatchFailure, ne.Kind)
	assert.Equal(t, "SendPendingRequestEmail", ne.Op)
	assert.ErrorIs(t, err, mailerport.ErrRejected)
	assert.Equal(t, 1, h.logs.FilterMessage("pending request email not sent").Len())
}

func TestSendPendingRequestEmail_SecretMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withSecret(""))
	_, err := h.svc.SendPendingRequestEmail(context.Background(), h.fx.Requests[0])
	assert.Equal(t, notifications.KindConfigurationMissing, notifications.KindOf(err))
	assert.ErrorIs(t, err, actiontoken.ErrSecretMissing)
	assert.Empty(t, h.fake.sentTo())
}

func TestSendPendingRequestEmail_TemplateMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withTemplates(fstest.MapFS{}))
	_, err := h.svc.SendPendingRequestEmail(context.Background(), h.fx.Requests[0])
	assert.Equal(t, notifications.KindTemplateUnavailable, notifications.KindOf(err))
}

func TestSendPendingRequestEmail_DispatcherUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withDispatcher(disabled.New()))
	rec, err := h.svc.SendPendingRequestEmail(context.Background(), h.fx.Requests[0])
	require.NoError(t, err)
	assert.Equal(t, mailerport.Receipt{}, rec)
}

// --- SendVerifyEmailTo ---

func TestSendVerifyEmailTo_SendsVerificationLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	user := domain.User{ID: "user-42", Name: "Alice", Email: "alice@example.com"}
	h.svc.SendVerifyEmailTo(context.Background(), user)

	msgs := h.fake.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].To)
	assert.Equal(t, "Verify your email address", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "Hi Alice (alice@example.com)")

	tok := tokenFromLink(t, msgs[0].HTML, backendURL+"/api/auth/verify?token=")
	p, err := h.issuer.Verify(tok, actiontoken.PurposeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, "user-42", p.SubjectID)

	h.clock.Advance(24*time.Hour + time.Second)
	_, err = h.issuer.Verify(tok, actiontoken.PurposeVerifyEmail)
	assert.ErrorIs(t, err, actiontoken.ErrExpired)
}

func TestSendVerifyEmailTo_NeverRaises(t *testing.T) {
	t.Parallel()

	user := domain.User{ID: "user-1", Name: "Alice", Email: "alice@example.com"}

	t.Run("dispatcher unconfigured", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, withDispatcher(disabled.New()))
		assert.NotPanics(t, func() { h.svc.SendVerifyEmailTo(context.Background(), user) })
		assert.Equal(t, 1, h.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})

	t.Run("dispatch fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.fake.fail[user.Email] = errors.New("smtp: 554 rejected")
		assert.NotPanics(t, func() { h.svc.SendVerifyEmailTo(context.Background(), user) })
		entries := h.logs.FilterMessage("verification email not sent").All()
		require.Len(t, entries, 1)
		assert.Equal(t, string(notifications.KindDispatchFailure), entries[0].ContextMap()["kind"])
	})

	t.Run("dispatcher panics", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.fake.panicOn[user.Email] = true
		assert.NotPanics(t, func() { h.svc.SendVerifyEmailTo(context.Background(), user) })
		assert.Equal(t, 1, h.logs.FilterMessage("verification email aborted").Len())
	})

	t.Run("template missing", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, withTemplates(fstest.MapFS{}))
		assert.NotPanics(t, func() { h.svc.SendVerifyEmailTo(context.Background(), user) })
		assert.Empty(t, h.fake.sentTo())
	})

	t.Run("secret missing", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, withSecret(""))
		h.svc.SendVerifyEmailTo(context.Background(), user)
		entries := h.logs.FilterMessage("verification email not sent").All()
		require.Len(t, entries, 1)
		assert.Equal(t, string(notifications.KindConfigurationMissing), entries[0].ContextMap()["kind"])
	})
}
