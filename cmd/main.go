package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/app"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/config"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/controllers"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/middleware"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/routes"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// CORSLowSecurityAllowedOriginLocalhost is added to the allowed origins
// when the high-security CORS flag is off.
const CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"

func main() {
	appName := config.AppName
	if appName == "" {
		appName = config.DefaultAppName
	}
	utils.InitLogger(appName)

	// 1) Config
	cfg := config.LoadConfig()
	defer cfg.Close()

	// 2) Core application (backend client, services)
	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize onboarding-service:", err)
	}
	defer application.Close()

	// 3) Controllers
	healthCtrl := controllers.NewHealthController(application)
	wizardCtrl := controllers.NewWizardController(application.SessionService, cfg.LDFlag_MaxPhotoBytes)
	photoCtrl := controllers.NewSubjectPhotoController(application.SessionService, cfg.LDFlag_MaxPhotoBytes)

	// 4) Router
	router := mux.NewRouter()
	router.HandleFunc(routes.Health, healthCtrl.HealthCheckHandler).Methods(http.MethodGet)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.JWTPublicKey, cfg.AllowDevUserHeader))

	secured.HandleFunc(routes.OnboardingSessions, wizardCtrl.StartSessionHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingSession, wizardCtrl.GetSessionHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.OnboardingSession, wizardCtrl.AbandonSessionHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.OnboardingFields, wizardCtrl.PatchFieldsHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.OnboardingPlaces, wizardCtrl.SearchPlacesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.OnboardingPlaceSelect, wizardCtrl.SelectPlaceHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingPhoto, wizardCtrl.AttachPhotoHandler).Methods(http.MethodPut)
	secured.HandleFunc(routes.OnboardingPhoto, wizardCtrl.RemovePhotoHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.OnboardingNext, wizardCtrl.NextHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingBack, wizardCtrl.BackHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingJump, wizardCtrl.EditJumpHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.OnboardingUserState, wizardCtrl.UserStateHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.SubjectPhoto, photoCtrl.RetryPhotoHandler).Methods(http.MethodPut)
	secured.HandleFunc(routes.SubjectPhoto, photoCtrl.RemovePhotoHandler).Methods(http.MethodDelete)

	// 5) Idle session sweeper
	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(constants.SessionCleanupCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SessionCleanupJobTimeout)
		defer cancel()
		if err := application.SessionCleanupService.SweepExpired(ctx); err != nil {
			utils.Logger.WithError(err).Error("Failed to sweep idle wizard sessions")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule session cleanup cron")
	}
	c.Start()
	defer c.Stop()
	utils.Logger.Info("Scheduled session cleanup cron job")

	// 6) CORS
	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, CORSLowSecurityAllowedOriginLocalhost)
	}
	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.DevUserHeader},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("onboarding-service failed to start:", err)
	}
}
