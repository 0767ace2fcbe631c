package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NotifyConfig holds the link bases and token settings used to compose notification emails.
type NotifyConfig struct {
	BackendBaseURL  string
	FrontendBaseURL string

	ActionTokenSecret string
	ActionTokenIssuer string

	// MaxConcurrentSends bounds the per-recipient fan-out; 0 means unlimited.
	MaxConcurrentSends int
}

func LoadNotifyConfigFromEnv() (NotifyConfig, error) {
	cfg := NotifyConfig{
		BackendBaseURL:    strings.TrimRight(Getenv("BACKEND_BASE_URL", "http://localhost:3000"), "/"),
		FrontendBaseURL:   strings.TrimRight(Getenv("FRONTEND_BASE_URL", "http://localhost:5173"), "/"),
		ActionTokenSecret: Getenv("ACTION_TOKEN_SECRET", ""),
		ActionTokenIssuer: Getenv("ACTION_TOKEN_ISSUER", "trip-notifier"),
	}
	for k, v := range map[string]string{"BACKEND_BASE_URL": cfg.BackendBaseURL, "FRONTEND_BASE_URL": cfg.FrontendBaseURL} {
		u, err := url.Parse(v)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return NotifyConfig{}, fmt.Errorf("%s must be an absolute URL (got %q)", k, v)
		}
	}

	var err error
	if cfg.MaxConcurrentSends, err = getenvInt("NOTIFY_MAX_CONCURRENT_SENDS", 0); err != nil {
		return NotifyConfig{}, err
	}
	if cfg.MaxConcurrentSends < 0 {
		return NotifyConfig{}, fmt.Errorf("NOTIFY_MAX_CONCURRENT_SENDS must be >= 0")
	}
	return cfg, nil
}

// TemplateConfig selects where email templates are read from.
type TemplateConfig struct {
	Backend string // dir | embedded | minio
	Dir     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioUseSSL    bool
}

func LoadTemplateConfigFromEnv() (TemplateConfig, error) {
	cfg := TemplateConfig{
		Backend:        strings.ToLower(Getenv("TEMPLATE_BACKEND", "dir")),
		Dir:            Getenv("TEMPLATE_DIR", "templates"),
		MinioEndpoint:  Getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: Getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: Getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    Getenv("MINIO_BUCKET", "email-templates"),
		MinioPrefix:    Getenv("MINIO_PREFIX", ""),
	}
	var err error
	if cfg.MinioUseSSL, err = getenvBool("MINIO_USE_SSL", false); err != nil {
		return TemplateConfig{}, err
	}
	switch cfg.Backend {
	case "dir", "embedded":
	case "minio":
		if cfg.MinioEndpoint == "" {
			return TemplateConfig{}, fmt.Errorf("MINIO_ENDPOINT is required when TEMPLATE_BACKEND=minio")
		}
	default:
		return TemplateConfig{}, fmt.Errorf("TEMPLATE_BACKEND must be one of dir, embedded, minio (got %q)", cfg.Backend)
	}
	return cfg, nil
}

// APIAuthConfig configures bearer-token verification for the internal HTTP API.
type APIAuthConfig struct {
	Mode string // jwt | dev

	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration

	DevSubject string
}

func LoadAPIAuthConfigFromEnv() (APIAuthConfig, error) {
	cfg := APIAuthConfig{
		Mode:       strings.ToLower(Getenv("AUTH_MODE", "jwt")),
		Secret:     Getenv("API_JWT_SECRET", ""),
		Issuer:     Getenv("API_JWT_ISSUER", "trip-sharing-backend"),
		Audience:   Getenv("API_JWT_AUDIENCE", "trip-notifier"),
		DevSubject: Getenv("DEV_SUBJECT", "dev|local"),
	}
	var err error
	if cfg.ClockSkew, err = getenvDuration("API_JWT_CLOCK_SKEW", 30*time.Second); err != nil {
		return APIAuthConfig{}, err
	}
	switch cfg.Mode {
	case "dev":
	case "jwt":
		if cfg.Secret == "" {
			return APIAuthConfig{}, fmt.Errorf("missing required env var: API_JWT_SECRET (or set AUTH_MODE=dev)")
		}
	default:
		return APIAuthConfig{}, fmt.Errorf("AUTH_MODE must be jwt or dev (got %q)", cfg.Mode)
	}
	return cfg, nil
}
