package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/clients"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/config"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/services"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App holds the config, the profile backend client and the services built
// on top of them.
type App struct {
	Config                *config.Config
	ProfileBackend        *clients.ProfileBackendClient
	SessionService        services.SessionService
	SessionCleanupService *services.SessionCleanupService
}

func NewApp(cfg *config.Config) (*App, error) {
	for _, dir := range []string{cfg.UploadStagingDir, cfg.UploadTempDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
		}
	}

	backend, err := clients.NewProfileBackendClient(
		cfg.ProfileBackendURL,
		&http.Client{Timeout: constants.ProfileBackendClientTimeout},
	)
	if err != nil {
		return nil, err
	}
	if err := waitForBackend(backend); err != nil {
		return nil, err
	}

	gmaps, err := services.NewMapsClient(cfg.GMapsAPIKey, cfg.GMapsBaseURL)
	if err != nil {
		return nil, err
	}

	media := services.NewMediaUploadService(backend, cfg.UploadTempDir)
	orchestrator := services.NewSubmissionOrchestrator(
		services.NewCreditsGate(backend, cfg.LDFlag_CreditsGateEnabled, services.LogUpgradePrompter{}),
		services.NewTimezoneResolver(gmaps),
		services.NewSubjectService(backend),
		media,
		cfg.LDFlag_PhotoUploadEnabled,
	)
	sessions := services.NewSessionService(
		services.NewLocationService(gmaps),
		orchestrator,
		media,
		services.SessionServiceConfig{
			StagingDir:    cfg.UploadStagingDir,
			MaxPhotoBytes: cfg.LDFlag_MaxPhotoBytes,
		},
	)

	utils.Logger.Infof("Initialized %s app", cfg.AppName)
	return &App{
		Config:                cfg,
		ProfileBackend:        backend,
		SessionService:        sessions,
		SessionCleanupService: services.NewSessionCleanupService(sessions, cfg.SessionTTL),
	}, nil
}

// waitForBackend pings the profile backend with exponential backoff.
func waitForBackend(backend *clients.ProfileBackendClient) error {
	backoff := initialBackoff
	for i := 1; ; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := backend.Ping(ctx)
		cancel()
		if err == nil {
			utils.Logger.Infof("Profile backend reachable on attempt %d", i)
			return nil
		}

		utils.Logger.WithError(err).Warnf(
			"Profile backend ping failed on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)
		if i == maxRetries {
			return fmt.Errorf("profile backend unreachable after %d attempts: %w", maxRetries, err)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}

// Ping reports whether the profile backend answers its health check.
func (a *App) Ping(ctx context.Context) error {
	return a.ProfileBackend.Ping(ctx)
}

func (a *App) Close() {
	utils.Logger.Infof("%s app shutting down.", a.Config.AppName)
}
