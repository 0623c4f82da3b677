package config

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

type Config struct {
	AppName            string
	Env                string
	AppPort            string
	AppUrl             string
	UniqueRunNumber    string
	UniqueRunnerID     string
	ProfileBackendURL  string
	GMapsAPIKey        string
	GMapsBaseURL       string
	JWTPublicKey       *rsa.PublicKey
	AllowDevUserHeader bool
	UploadStagingDir   string
	UploadTempDir      string
	SessionTTL         time.Duration

	// Feature-flag snapshots
	LDFlag_CreditsGateEnabled bool
	LDFlag_PhotoUploadEnabled bool
	LDFlag_CORSHighSecurity   bool
	LDFlag_MaxPhotoBytes      int64

	ldClient *ld.LDClient
}

const (
	DefaultAppName      = "onboarding-service"
	EnvDev              = "dev"
	LDConnectionTimeout = 5 * time.Second
)

// Flag keys
const (
	FlagCreditsGateEnabled = "onboarding_credits_gate_enabled"
	FlagPhotoUploadEnabled = "onboarding_photo_upload_enabled"
	FlagCORSHighSecurity   = "onboarding_cors_high_security"
	FlagMaxPhotoBytes      = "onboarding_max_photo_bytes"
)

// build-time overrides, set with -ldflags
var (
	AppName             string
	UniqueRunNumber     string
	UniqueRunnerID      string
	LDServerContextKey  string
	LDServerContextKind string
)

// LoadConfig reads .env (when present) and the process environment, and
// exits on any invalid setting.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Logger.WithError(err).Warn("Could not read .env file")
	}

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}
	utils.Logger.Infof("Loaded config for %s (%s)", cfg.AppName, cfg.Env)
	return cfg
}

// FromEnv builds a Config from getenv. It does not exit.
func FromEnv(getenv func(string) string) (*Config, error) {
	appName := AppName
	if appName == "" {
		appName = DefaultAppName
	}

	//----------------------------------------------------------------------
	// 1) Required runtime environment vars
	//----------------------------------------------------------------------
	env := getenv("ENV")
	if env == "" {
		return nil, errors.New("ENV env var is missing")
	}
	appPort := getenv("APP_PORT")
	if appPort == "" {
		return nil, errors.New("APP_PORT env var is missing")
	}
	appURL := getenv("APP_URL_FROM_ANYWHERE")
	if appURL == "" {
		return nil, errors.New("APP_URL_FROM_ANYWHERE env var is missing")
	}
	backendURL := getenv("PROFILE_BACKEND_URL")
	if backendURL == "" {
		return nil, errors.New("PROFILE_BACKEND_URL env var is missing")
	}

	cfg := &Config{
		AppName:           appName,
		Env:               env,
		AppPort:           appPort,
		AppUrl:            appURL,
		UniqueRunNumber:   UniqueRunNumber,
		UniqueRunnerID:    UniqueRunnerID,
		ProfileBackendURL: backendURL,
		GMapsAPIKey:       getenv("GMAPS_API_KEY"),
		GMapsBaseURL:      getenv("GMAPS_BASE_URL"),
		UploadStagingDir:  getenv("UPLOAD_STAGING_DIR"),
		UploadTempDir:     getenv("UPLOAD_TEMP_DIR"),
		SessionTTL:        constants.DefaultSessionTTL,
	}
	if cfg.UploadStagingDir == "" {
		cfg.UploadStagingDir = filepath.Join(os.TempDir(), constants.DefaultStagingDirName)
	}
	if cfg.UploadTempDir == "" {
		cfg.UploadTempDir = filepath.Join(os.TempDir(), constants.DefaultUploadTempDirName)
	}
	if ttl := getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SESSION_TTL %q is not a positive duration", ttl)
		}
		cfg.SessionTTL = d
	}

	//----------------------------------------------------------------------
	// 2) Auth
	//----------------------------------------------------------------------
	if pemStr := getenv("JWT_PUBLIC_KEY_PEM"); pemStr != "" {
		pub, err := parsePublicKey(pemStr)
		if err != nil {
			return nil, err
		}
		cfg.JWTPublicKey = pub
	} else {
		if env != EnvDev {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY_PEM is required when ENV=%s", env)
		}
		utils.Logger.Warn("JWT_PUBLIC_KEY_PEM not set; trusting X-User-Id header (dev only)")
		cfg.AllowDevUserHeader = true
	}

	//----------------------------------------------------------------------
	// 3) LaunchDarkly flags
	//----------------------------------------------------------------------
	cfg.applyFlagDefaults()
	if sdkKey := getenv("LD_SDK_KEY"); sdkKey != "" {
		ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
		if err != nil {
			return nil, fmt.Errorf("create LaunchDarkly client: %w", err)
		}
		if !ldClient.Initialized() {
			_ = ldClient.Close()
			return nil, errors.New("LaunchDarkly client failed to initialize")
		}
		if err := cfg.snapshotFlags(ldClient, serverContext(appName)); err != nil {
			_ = ldClient.Close()
			return nil, err
		}
		cfg.ldClient = ldClient
	} else {
		utils.Logger.Warn("LD_SDK_KEY not set; using default feature flags")
	}
	return cfg, nil
}

func serverContext(appName string) ldcontext.Context {
	kind, key := LDServerContextKind, LDServerContextKey
	if kind == "" {
		kind = "service"
	}
	if key == "" {
		key = appName
	}
	return ldcontext.NewWithKind(ldcontext.Kind(kind), key)
}

func (c *Config) applyFlagDefaults() {
	c.LDFlag_CreditsGateEnabled = true
	c.LDFlag_PhotoUploadEnabled = true
	c.LDFlag_CORSHighSecurity = true
	c.LDFlag_MaxPhotoBytes = constants.DefaultMaxPhotoBytes
}

type flagSource interface {
	BoolVariation(key string, context ldcontext.Context, defaultVal bool) (bool, error)
	IntVariation(key string, context ldcontext.Context, defaultVal int) (int, error)
}

func (c *Config) snapshotFlags(src flagSource, ctx ldcontext.Context) error {
	var err error
	if c.LDFlag_CreditsGateEnabled, err = src.BoolVariation(FlagCreditsGateEnabled, ctx, true); err != nil {
		return fmt.Errorf("%s flag error: %w", FlagCreditsGateEnabled, err)
	}
	utils.Logger.Debugf("%s flag: %t", FlagCreditsGateEnabled, c.LDFlag_CreditsGateEnabled)

	if c.LDFlag_PhotoUploadEnabled, err = src.BoolVariation(FlagPhotoUploadEnabled, ctx, true); err != nil {
		return fmt.Errorf("%s flag error: %w", FlagPhotoUploadEnabled, err)
	}
	utils.Logger.Debugf("%s flag: %t", FlagPhotoUploadEnabled, c.LDFlag_PhotoUploadEnabled)

	if c.LDFlag_CORSHighSecurity, err = src.BoolVariation(FlagCORSHighSecurity, ctx, true); err != nil {
		return fmt.Errorf("%s flag error: %w", FlagCORSHighSecurity, err)
	}
	utils.Logger.Debugf("%s flag: %t", FlagCORSHighSecurity, c.LDFlag_CORSHighSecurity)

	maxBytes, err := src.IntVariation(FlagMaxPhotoBytes, ctx, constants.DefaultMaxPhotoBytes)
	if err != nil {
		return fmt.Errorf("%s flag error: %w", FlagMaxPhotoBytes, err)
	}
	if maxBytes <= 0 {
		return fmt.Errorf("%s flag must be positive, got %d", FlagMaxPhotoBytes, maxBytes)
	}
	c.LDFlag_MaxPhotoBytes = int64(maxBytes)
	utils.Logger.Debugf("%s flag: %d", FlagMaxPhotoBytes, maxBytes)
	return nil
}

// parsePublicKey accepts a PEM block, raw or base64-encoded.
func parsePublicKey(s string) (*rsa.PublicKey, error) {
	raw := []byte(s)
	if !strings.Contains(s, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("decode JWT_PUBLIC_KEY_PEM: %w", err)
		}
		raw = decoded
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse JWT_PUBLIC_KEY_PEM: %w", err)
	}
	return pub, nil
}

func (c *Config) Close() {
	if c.ldClient != nil {
		_ = c.ldClient.Close()
	}
}
