package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/mail"
	memidempotency "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/idempotency"
	memparticipantrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/participantrepo"
	memtriprepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/triprepo"
	memuserrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/memory/userrepo"
	postgres "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres"
	pgidempotency "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/idempotency"
	pgparticipantrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/participantrepo"
	pgtriprepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/triprepo"
	pguserrepo "github.com/Overland-East-Bay/trip-notifier/internal/adapters/postgres/userrepo"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/templates/fsstore"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/templates/miniostore"
	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	platformclock "github.com/Overland-East-Bay/trip-notifier/internal/platform/clock"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
	idempotencyport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/idempotency"
	participantrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/participantrepo"
	templatesport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/templates"
	triprepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/triprepo"
	userrepoport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/userrepo"
	"github.com/Overland-East-Bay/trip-notifier/templates"
)

// application is everything the serve and send commands need.
type application struct {
	notifier  *notifications.Service
	idemStore idempotencyport.Store
	cleanup   func()
}

func (a *application) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

func buildApplication(ctx context.Context, logger *zap.Logger) (*application, error) {
	notifyCfg, err := config.LoadNotifyConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid notify config: %w", err)
	}
	mailCfg, err := config.LoadMailConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid mail config: %w", err)
	}
	tmplCfg, err := config.LoadTemplateConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid template config: %w", err)
	}

	app := &application{}
	var (
		userRepo        userrepoport.Repository
		tripRepo        triprepoport.Repository
		participantRepo participantrepoport.Repository
	)

	storageBackend := strings.ToLower(config.Getenv("STORAGE_BACKEND", defaultStorageBackend()))
	switch storageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, config.Getenv("DATABASE_URL", ""), postgres.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		app.cleanup = pool.Close

		userRepo = pguserrepo.NewRepo(pool)
		tripRepo = pgtriprepo.NewRepo(pool)
		participantRepo = pgparticipantrepo.NewRepo(pool)
		app.idemStore = pgidempotency.NewStore(pool)
	case "memory":
		logger.Warn("STORAGE_BACKEND=memory: users, trips and participants start empty; every trigger resolves to not found")
		userRepo = memuserrepo.NewRepo()
		tripRepo = memtriprepo.NewRepo()
		participantRepo = memparticipantrepo.NewRepo()
		app.idemStore = memidempotency.NewStore()
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be memory or postgres (got %q)", storageBackend)
	}

	tmplStore, err := newTemplateStore(tmplCfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	if notifyCfg.ActionTokenSecret == "" {
		logger.Warn("ACTION_TOKEN_SECRET is not set; verification and participation emails will fail")
	}

	app.notifier = notifications.NewService(notifications.Config{
		BackendBaseURL:     notifyCfg.BackendBaseURL,
		FrontendBaseURL:    notifyCfg.FrontendBaseURL,
		FromAddress:        mailCfg.FromAddress,
		FromName:           mailCfg.FromName,
		MaxConcurrentSends: notifyCfg.MaxConcurrentSends,
	}, notifications.Deps{
		Templates:    tmplStore,
		Dispatcher:   mail.New(mailCfg, logger.Named("mail")),
		Tokens:       newTokenIssuer(notifyCfg),
		Users:        userRepo,
		Trips:        tripRepo,
		Participants: participantRepo,
		Logger:       logger.Named("notifications"),
	})
	return app, nil
}

// defaultStorageBackend is postgres when DATABASE_URL is set, otherwise memory.
func defaultStorageBackend() string {
	if config.Getenv("DATABASE_URL", "") != "" {
		return "postgres"
	}
	return "memory"
}

func newTemplateStore(cfg config.TemplateConfig) (templatesport.Store, error) {
	switch cfg.Backend {
	case "embedded":
		return fsstore.NewFSStore(templates.FS), nil
	case "minio":
		client, err := miniostore.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.MinioBucket, cfg.MinioPrefix), nil
	default:
		return fsstore.NewDirStore(cfg.Dir), nil
	}
}

func newTokenIssuer(cfg config.NotifyConfig) *actiontoken.Issuer {
	return actiontoken.NewIssuer(cfg.ActionTokenSecret, cfg.ActionTokenIssuer, platformclock.NewSystemClock())
}
