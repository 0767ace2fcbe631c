package notifications

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

// The trigger methods resolve entities by ID for callers that only hold
// identifiers (the HTTP API and the CLI), then delegate to the Send methods.
// Unlike the Send methods they report unresolvable IDs as KindEntityNotFound.

// NotifyVerifyEmail resolves userID and sends the verification email.
func (s *Service) NotifyVerifyEmail(ctx context.Context, userID domain.UserID) error {
	const op = "NotifyVerifyEmail"
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return lookupError(op, fmt.Errorf("user %s: %w", userID, err))
	}
	s.SendVerifyEmailTo(ctx, user)
	return nil
}

// NotifyTripDatesChanged resolves the updated trip, and the creator email and
// participants when the caller did not supply them, then sends the batch.
func (s *Service) NotifyTripDatesChanged(ctx context.Context, in TripDatesChange) (*BatchResult, error) {
	const op = "NotifyTripDatesChanged"
	updated, err := s.trips.GetByID(ctx, in.TripID)
	if err != nil {
		return nil, lookupError(op, fmt.Errorf("trip %s: %w", in.TripID, err))
	}

	previous := in.Previous
	previous.ID = updated.ID
	if previous.Title == "" {
		previous.Title = updated.Title
	}

	creatorEmail := in.CreatorEmail
	if creatorEmail == "" {
		creator, err := s.users.GetByID(ctx, updated.CreatorID)
		if err != nil {
			if !isNotFound(err) {
				return nil, lookupError(op, fmt.Errorf("creator %s: %w", updated.CreatorID, err))
			}
			s.log(ctx).Warn("trip creator not found; notifying every participant",
				zap.String("trip_id", string(updated.ID)),
				zap.String("creator_id", string(updated.CreatorID)),
			)
		} else {
			creatorEmail = creator.Email
		}
	}

	participants := in.Participants
	if participants == nil {
		participants, err = s.participants.ListByTrip(ctx, updated.ID)
		if err != nil {
			return nil, lookupError(op, fmt.Errorf("participants of %s: %w", updated.ID, err))
		}
	}

	return s.SendTripUpdateNotification(ctx, participants, previous, updated, creatorEmail), nil
}

// NotifyPendingRequest resolves the participation request by ID and emails the trip creator.
func (s *Service) NotifyPendingRequest(ctx context.Context, id domain.ParticipationID) (mailerport.Receipt, error) {
	const op = "NotifyPendingRequest"
	req, err := s.participants.GetRequest(ctx, id)
	if err != nil {
		return mailerport.Receipt{}, lookupError(op, fmt.Errorf("participation request %s: %w", id, err))
	}
	return s.SendPendingRequestEmail(ctx, req)
}

// DispatcherAvailable reports whether emails will actually be handed to a provider.
func (s *Service) DispatcherAvailable() bool {
	return s.dispatcher.Available()
}
