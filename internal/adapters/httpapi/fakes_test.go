package httpapi

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string

	verifyCalls  []domain.UserID
	verifyErr    error
	tripCalls    []notifications.TripDatesChange
	tripResult   *notifications.BatchResult
	tripErr      error
	pendingCalls []domain.ParticipationRequest
	receipt      mailerport.Receipt
	pendingErr   error

	// When set, NotifyVerifyEmail signals started and waits on release before recording.
	started chan struct{}
	release chan struct{}
}

func (f *fakeNotifier) record(ctx context.Context) {
	sub, _ := SubjectFromContext(ctx)
	f.subjects = append(f.subjects, sub)
}

func (f *fakeNotifier) NotifyVerifyEmail(ctx context.Context, userID domain.UserID) error {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	f.verifyCalls = append(f.verifyCalls, userID)
	return f.verifyErr
}

func (f *fakeNotifier) NotifyTripDatesChanged(ctx context.Context, in notifications.TripDatesChange) (*notifications.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	f.tripCalls = append(f.tripCalls, in)
	return f.tripResult, f.tripErr
}

func (f *fakeNotifier) SendPendingRequestEmail(ctx context.Context, req domain.ParticipationRequest) (mailerport.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx)
	f.pendingCalls = append(f.pendingCalls, req)
	return f.receipt, f.pendingErr
}
