package notifications

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/logging"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/metrics"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/render"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
	templatesport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/templates"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
	"github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
)

// Service composes and sends the transactional emails of the trip-sharing app.
//
// Error policy differs per operation:
//   - SendVerifyEmailTo logs every failure and returns nothing.
//   - SendTripUpdateNotification logs failures and returns a tally, or nil on early exit.
//   - SendPendingRequestEmail logs failures and returns them as *Error.
//
// None of the operations mutate application state.
type Service struct {
	cfg          Config
	templates    templatesport.Store
	dispatcher   mailerport.Dispatcher
	tokens       TokenIssuer
	users        userrepo.Repository
	trips        triprepo.Repository
	participants participantrepo.Repository
	logger       *zap.Logger
}

type Deps struct {
	Templates    templatesport.Store
	Dispatcher   mailerport.Dispatcher
	Tokens       TokenIssuer
	Users        userrepo.Repository
	Trips        triprepo.Repository
	Participants participantrepo.Repository
	Logger       *zap.Logger
}

func NewService(cfg Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BackendBaseURL = strings.TrimRight(cfg.BackendBaseURL, "/")
	cfg.FrontendBaseURL = strings.TrimRight(cfg.FrontendBaseURL, "/")
	return &Service{
		cfg:          cfg,
		templates:    deps.Templates,
		dispatcher:   deps.Dispatcher,
		tokens:       deps.Tokens,
		users:        deps.Users,
		trips:        deps.Trips,
		participants: deps.Participants,
		logger:       logger,
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, s.logger)
}

// SendVerifyEmailTo sends the account verification email to user.
// Failures are logged and never reported to the caller.
func (s *Service) SendVerifyEmailTo(ctx context.Context, user domain.User) {
	const op = "SendVerifyEmailTo"
	log := s.log(ctx).With(zap.String("op", op), zap.String("user_id", string(user.ID)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("verification email aborted", zap.Any("panic", r), zap.Stack("stack"))
			metrics.EmailsFailed.WithLabelValues(metrics.EventVerifyEmail, "panic").Inc()
		}
	}()

	if !s.dispatcher.Available() {
		log.Warn("mail dispatcher unavailable; verification email skipped")
		metrics.EmailsSkipped.WithLabelValues(metrics.EventVerifyEmail, "dispatcher_unavailable").Inc()
		return
	}

	if err := s.sendVerifyEmail(ctx, op, user); err != nil {
		log.Error("verification email not sent",
			zap.String("kind", string(err.Kind)),
			zap.String("to", user.Email),
			zap.Error(err.Err),
		)
		metrics.EmailsFailed.WithLabelValues(metrics.EventVerifyEmail, string(err.Kind)).Inc()
		return
	}
	log.Info("verification email sent", zap.String("to", user.Email))
	metrics.EmailsSent.WithLabelValues(metrics.EventVerifyEmail).Inc()
}

func (s *Service) sendVerifyEmail(ctx context.Context, op string, user domain.User) *Error {
	token, err := s.tokens.Issue(actiontoken.Payload{
		SubjectID: string(user.ID),
		Purpose:   actiontoken.PurposeVerifyEmail,
	}, actiontoken.VerificationTTL)
	if err != nil {
		return tokenError(op, err)
	}

	tpl, err := s.templates.Load(ctx, templatesport.VerifyEmail)
	if err != nil {
		return templateError(op, err)
	}

	html := render.Render(tpl, render.Vars{
		render.Var("name", displayName(user.Name, user.Email)),
		render.Var("email", user.Email),
		render.Raw("verificationLink", s.verificationLink(token)),
	})
	if _, err := s.dispatcher.Send(ctx, s.message(user.Email, user.Name, "Verify your email address", html)); err != nil {
		return dispatchError(op, err)
	}
	return nil
}

// SendTripUpdateNotification emails every participant except the creator about changed trip dates.
//
// It returns nil when nothing was attempted: no dispatcher, no participants,
// only the creator, or the template could not be loaded. Otherwise it waits for
// every send to settle and returns the tally. It never panics or returns an error.
func (s *Service) SendTripUpdateNotification(
	ctx context.Context,
	participants []domain.Participant,
	oldTrip domain.Trip,
	updatedTrip domain.Trip,
	creatorEmail string,
) (result *BatchResult) {
	const op = "SendTripUpdateNotification"
	log := s.log(ctx).With(zap.String("op", op), zap.String("trip_id", string(updatedTrip.ID)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("trip update notification aborted", zap.Any("panic", r), zap.Stack("stack"))
			metrics.EmailsFailed.WithLabelValues(metrics.EventTripDates, "panic").Inc()
			result = nil
		}
	}()

	if !s.dispatcher.Available() {
		log.Warn("mail dispatcher unavailable; trip update notification skipped")
		metrics.EmailsSkipped.WithLabelValues(metrics.EventTripDates, "dispatcher_unavailable").Inc()
		return nil
	}
	if len(participants) == 0 {
		log.Warn("no participants to notify")
		metrics.EmailsSkipped.WithLabelValues(metrics.EventTripDates, "no_participants").Inc()
		return nil
	}

	recipients := excludeEmail(participants, creatorEmail)
	if len(recipients) == 0 {
		log.Info("only the trip creator participates; nothing to send")
		metrics.EmailsSkipped.WithLabelValues(metrics.EventTripDates, "creator_only").Inc()
		return nil
	}
	metrics.BatchRecipients.Observe(float64(len(recipients)))

	tpl, err := s.templates.Load(ctx, templatesport.TripDatesModified)
	if err != nil {
		e := templateError(op, err)
		log.Error("trip update notification not sent",
			zap.String("kind", string(e.Kind)),
			zap.String("template", templatesport.TripDatesModified),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		metrics.EmailsFailed.WithLabelValues(metrics.EventTripDates, string(e.Kind)).Add(float64(len(recipients)))
		return nil
	}

	shared := render.Vars{
		render.Var("tripTitle", updatedTrip.Title),
		render.Var("oldStartDate", formatDate(oldTrip.StartDate)),
		render.Var("oldEndDate", formatDate(oldTrip.EndDate)),
		render.Var("newStartDate", formatDate(updatedTrip.StartDate)),
		render.Var("newEndDate", formatDate(updatedTrip.EndDate)),
		render.Raw("tripLink", s.tripLink(updatedTrip.ID)),
	}
	subject := fmt.Sprintf("Trip dates updated: %s", updatedTrip.Title)

	errs := make([]error, len(recipients))
	var g errgroup.Group
	if s.cfg.MaxConcurrentSends > 0 {
		g.SetLimit(s.cfg.MaxConcurrentSends)
	}
	for i, p := range recipients {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("send panicked: %v", r)
				}
			}()
			vars := append(render.Vars{render.Var("participantName", displayName(p.Name, p.Email))}, shared...)
			html := render.Render(tpl, vars)
			if _, err := s.dispatcher.Send(ctx, s.message(p.Email, p.Name, subject, html)); err != nil {
				errs[i] = err
			}
			// Failures are collected in errs; the group never short-circuits.
			return nil
		})
	}
	_ = g.Wait()

	result = &BatchResult{Total: len(recipients)}
	for i, err := range errs {
		if err == nil {
			result.Sent++
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, RecipientFailure{Email: recipients[i].Email, Err: err})
		log.Error("trip update email failed",
			zap.String("kind", string(KindDispatchFailure)),
			zap.String("to", recipients[i].Email),
			zap.Error(err),
		)
	}
	metrics.EmailsSent.WithLabelValues(metrics.EventTripDates).Add(float64(result.Sent))
	if result.Failed > 0 {
		metrics.EmailsFailed.WithLabelValues(metrics.EventTripDates, string(KindDispatchFailure)).Add(float64(result.Failed))
	}
	log.Info("trip update notification finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("total", result.Total),
	)
	return result
}

// SendPendingRequestEmail asks the trip creator to accept or reject a join request.
//
// When the requester, the trip or its creator cannot be found nothing is sent
// and (Receipt{}, nil) is returned. Every other failure is logged and returned as *Error.
func (s *Service) SendPendingRequestEmail(ctx context.Context, req domain.ParticipationRequest) (mailerport.Receipt, error) {
	const op = "SendPendingRequestEmail"
	log := s.log(ctx).With(
		zap.String("op", op),
		zap.String("participation_id", string(req.ID)),
		zap.String("trip_id", string(req.TripID)),
	)

	if !s.dispatcher.Available() {
		log.Warn("mail dispatcher unavailable; pending request email skipped")
		metrics.EmailsSkipped.WithLabelValues(metrics.EventPendingRequest, "dispatcher_unavailable").Inc()
		return mailerport.Receipt{}, nil
	}

	rec, err := s.sendPendingRequest(ctx, op, req)
	if err != nil {
		if err.Kind == KindEntityNotFound {
			log.Warn("pending request email skipped; entity not found", zap.Error(err.Err))
			metrics.EmailsSkipped.WithLabelValues(metrics.EventPendingRequest, "entity_not_found").Inc()
			return mailerport.Receipt{}, nil
		}
		log.Error("pending request email not sent", zap.String("kind", string(err.Kind)), zap.Error(err.Err))
		metrics.EmailsFailed.WithLabelValues(metrics.EventPendingRequest, string(err.Kind)).Inc()
		return mailerport.Receipt{}, err
	}
	log.Info("pending request email sent",
		zap.String("provider", rec.Provider),
		zap.String("message_id", rec.MessageID),
	)
	metrics.EmailsSent.WithLabelValues(metrics.EventPendingRequest).Inc()
	return rec, nil
}

func (s *Service) sendPendingRequest(ctx context.Context, op string, req domain.ParticipationRequest) (mailerport.Receipt, *Error) {
	requester, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return mailerport.Receipt{}, lookupError(op, fmt.Errorf("requester %s: %w", req.UserID, err))
	}
	trip, err := s.trips.GetByID(ctx, req.TripID)
	if err != nil {
		return mailerport.Receipt{}, lookupError(op, fmt.Errorf("trip %s: %w", req.TripID, err))
	}
	creator, err := s.users.GetByID(ctx, trip.CreatorID)
	if err != nil {
		return mailerport.Receipt{}, lookupError(op, fmt.Errorf("creator %s: %w", trip.CreatorID, err))
	}

	links := make(map[domain.ParticipationAction]string, 2)
	for _, action := range []domain.ParticipationAction{domain.ParticipationAccepted, domain.ParticipationRejected} {
		token, err := s.tokens.Issue(actiontoken.Payload{
			SubjectID: string(req.ID),
			Action:    action,
			Purpose:   actiontoken.PurposeParticipationAction,
		}, actiontoken.ParticipationTTL)
		if err != nil {
			return mailerport.Receipt{}, tokenError(op, err)
		}
		links[action] = s.participationActionLink(req.ID, token)
	}

	tpl, err := s.templates.Load(ctx, templatesport.PendingRequest)
	if err != nil {
		return mailerport.Receipt{}, templateError(op, err)
	}

	html := render.Render(tpl, render.Vars{
		render.Var("creatorName", displayName(creator.Name, creator.Email)),
		render.Var("requesterName", displayName(requester.Name, requester.Email)),
		render.Var("requesterEmail", requester.Email),
		render.Var("tripTitle", trip.Title),
		render.Raw("tripLink", s.tripLink(trip.ID)),
		render.Optional("message", req.Message, MessageFallback),
		render.Raw("acceptLink", links[domain.ParticipationAccepted]),
		render.Raw("rejectLink", links[domain.ParticipationRejected]),
	})
	subject := fmt.Sprintf("New request to join %s", trip.Title)

	rec, err := s.dispatcher.Send(ctx, s.message(creator.Email, creator.Name, subject, html))
	if err != nil {
		return mailerport.Receipt{}, dispatchError(op, err)
	}
	return rec, nil
}

func (s *Service) message(to, toName, subject, html string) mailerport.Message {
	return mailerport.Message{
		From:     s.cfg.FromAddress,
		FromName: s.cfg.FromName,
		To:       to,
		ToName:   toName,
		Subject:  subject,
		HTML:     html,
	}
}

func (s *Service) verificationLink(token string) string {
	return s.cfg.BackendBaseURL + "/api/auth/verify?token=" + url.QueryEscape(token)
}

func (s *Service) participationActionLink(id domain.ParticipationID, token string) string {
	return s.cfg.BackendBaseURL + "/api/participants/" + url.PathEscape(string(id)) + "/action?token=" + url.QueryEscape(token)
}

func (s *Service) tripLink(id domain.TripID) string {
	return s.cfg.FrontendBaseURL + "/trips/" + url.PathEscape(string(id))
}

func excludeEmail(ps []domain.Participant, email string) []domain.Participant {
	skip := domain.NormalizeEmail(email)
	out := make([]domain.Participant, 0, len(ps))
	for _, p := range ps {
		if skip != "" && domain.NormalizeEmail(p.Email) == skip {
			continue
		}
		out = append(out, p)
	}
	return out
}
