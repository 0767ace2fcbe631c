package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

const maxBodyBytes = 1 << 20

// Notifier is the application surface the HTTP adapter drives.
type Notifier interface {
	NotifyVerifyEmail(ctx context.Context, userID domain.UserID) error
	NotifyTripDatesChanged(ctx context.Context, in notifications.TripDatesChange) (*notifications.BatchResult, error)
	SendPendingRequestEmail(ctx context.Context, req domain.ParticipationRequest) (mailerport.Receipt, error)
}

type Server struct {
	Notifications Notifier
	Idem          idempotency.Store

	validate *validator.Validate
}

func NewServer(svc Notifier, idem idempotency.Store) *Server {
	return &Server{
		Notifications: svc,
		Idem:          idem,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// PostVerifyEmail handles POST /notifications/verify-email.
// Delivery failures are not reported: the email is fire-and-forget.
func (s *Server) PostVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body VerifyEmailRequest
	if !s.decode(w, r, &body) {
		return
	}
	s.idempotent(w, r, "POST /notifications/verify-email", body, func(ctx context.Context) (int, any) {
		if err := s.Notifications.NotifyVerifyEmail(ctx, domain.UserID(body.UserID)); err != nil {
			return errorResult(r, err, "USER_NOT_FOUND", "user not found")
		}
		return http.StatusAccepted, AcceptedResponse{Status: "accepted"}
	})
}

// PostTripDates handles POST /notifications/trip-dates.
func (s *Server) PostTripDates(w http.ResponseWriter, r *http.Request) {
	var body TripDatesRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Previous.StartDate.IsZero() || body.Previous.EndDate.IsZero() {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "previous.startDate and previous.endDate are required", nil)
		return
	}
	if body.Previous.EndDate.Before(body.Previous.StartDate.Time) {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "previous.endDate is before previous.startDate", nil)
		return
	}

	s.idempotent(w, r, "POST /notifications/trip-dates", body, func(ctx context.Context) (int, any) {
		res, err := s.Notifications.NotifyTripDatesChanged(ctx, tripDatesChangeFromRequest(body))
		if err != nil {
			return errorResult(r, err, "TRIP_NOT_FOUND", "trip not found")
		}
		if res == nil {
			return http.StatusNoContent, nil
		}
		return http.StatusOK, batchResultToResponse(res)
	})
}

// PostParticipationRequest handles POST /notifications/participation-requests.
func (s *Server) PostParticipationRequest(w http.ResponseWriter, r *http.Request) {
	var body ParticipationRequestNotice
	if !s.decode(w, r, &body) {
		return
	}
	s.idempotent(w, r, "POST /notifications/participation-requests", body, func(ctx context.Context) (int, any) {
		rec, err := s.Notifications.SendPendingRequestEmail(ctx, domain.ParticipationRequest{
			ID:      domain.ParticipationID(body.ID),
			TripID:  domain.TripID(body.TripID),
			UserID:  domain.UserID(body.UserID),
			Message: body.Message,
		})
		if err != nil {
			return errorResult(r, err, "ENTITY_NOT_FOUND", "participation request could not be resolved")
		}
		status := "sent"
		if rec == (mailerport.Receipt{}) {
			status = "skipped"
		}
		return http.StatusAccepted, ReceiptResponse{
			Status:     status,
			Provider:   rec.Provider,
			MessageID:  rec.MessageID,
			StatusCode: rec.StatusCode,
		}
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", map[string]any{"reason": err.Error()})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "request validation failed", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) map[string]any {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]any{"reason": err.Error()}
	}
	fields := make(map[string]any, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields[ns] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}

// errorResult maps a notification error onto a status code and envelope.
func errorResult(r *http.Request, err error, notFoundCode, notFoundMessage string) (int, any) {
	status, code, message := http.StatusInternalServerError, "INTERNAL", "internal error"
	switch notifications.KindOf(err) {
	case notifications.KindEntityNotFound:
		status, code, message = http.StatusNotFound, notFoundCode, notFoundMessage
	case notifications.KindDispatchFailure:
		status, code, message = http.StatusBadGateway, "DISPATCH_FAILED", "mail provider did not accept the message"
	case notifications.KindConfigurationMissing:
		code, message = "CONFIGURATION_MISSING", "notification service is not fully configured"
	case notifications.KindTemplateUnavailable:
		code, message = "TEMPLATE_UNAVAILABLE", "email template could not be loaded"
	case notifications.KindInvalidInput:
		status, code, message = http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error()
	}
	return status, newErrorResponse(r, code, message, nil)
}

func tripDatesChangeFromRequest(b TripDatesRequest) notifications.TripDatesChange {
	in := notifications.TripDatesChange{
		TripID: domain.TripID(b.TripID),
		Previous: domain.Trip{
			StartDate: b.Previous.StartDate.Time,
			EndDate:   b.Previous.EndDate.Time,
		},
	}
	if b.Previous.Title != nil {
		in.Previous.Title = strings.TrimSpace(*b.Previous.Title)
	}
	if b.CreatorEmail != nil {
		in.CreatorEmail = string(*b.CreatorEmail)
	}
	if b.Participants != nil {
		in.Participants = make([]domain.Participant, 0, len(b.Participants))
		for _, p := range b.Participants {
			in.Participants = append(in.Participants, domain.Participant{Name: p.Name, Email: string(p.Email)})
		}
	}
	return in
}

func batchResultToResponse(res *notifications.BatchResult) BatchResultResponse {
	out := BatchResultResponse{
		Sent:     res.Sent,
		Failed:   res.Failed,
		Total:    res.Total,
		Failures: make([]RecipientFailure, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, RecipientFailure{Email: f.Email, Error: f.Err.Error()})
	}
	return out
}
