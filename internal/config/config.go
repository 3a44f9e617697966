package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DismissalScope decides who shares an alert dismissal
type DismissalScope string

const (
	// DismissalGlobal shares one dismissal set between every viewer of a fleet
	DismissalGlobal DismissalScope = "global"
	// DismissalViewer keeps dismissals per viewer session
	DismissalViewer DismissalScope = "viewer"
)

// StopLogPolicy decides which duration is logged when an armed stop ends
type StopLogPolicy string

const (
	// StopLogArming logs the stop duration captured when the alert armed
	StopLogArming StopLogPolicy = "arming"
	// StopLogMove logs the full stop duration at the moment the unit moved
	StopLogMove StopLogPolicy = "move"
)

const DefaultForesightURL = "https://flexapi.foresightgps.com/ForesightFlexAPI.ashx"

type Config struct {
	// HTTP
	Port string

	// Storage
	DatabaseURL string
	FleetsFile  string

	// Foresight Flex API
	ForesightURL        string
	ForesightAuthHeader string
	ForesightUserID     string
	ForesightConnCode   string
	ForesightTimeout    time.Duration
	ForesightTimeField  string

	// Engine
	Timezone         string
	Thresholds       Thresholds
	SnapshotCacheTTL time.Duration
	EventLogDisplay  int
	DismissalScope   DismissalScope
	StopLogPolicy    StopLogPolicy

	// Redis (optional, shares dismissals between replicas and publishes alerts)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth
	JWTSecret     string
	AdminEmail    string
	AdminPassword string

	// Notifications
	FirebaseCredentialsBase64 string
	FirebaseCredentialsFile   string
	FCMAlertTopic             string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUser                  string
	SMTPPassword              string
	AlertEmailTo              []string
}

// Load reads the configuration from the environment, applying defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		FleetsFile:          getEnv("FLEETS_FILE", "fleets.json"),
		ForesightURL:        getEnv("FORESIGHT_API_URL", DefaultForesightURL),
		ForesightAuthHeader: getEnv("FORESIGHT_AUTH_HEADER", ""),
		ForesightUserID:     getEnv("FORESIGHT_USER_ID", ""),
		ForesightConnCode:   getEnv("FORESIGHT_CONN_CODE", ""),
		ForesightTimeout:    time.Duration(getEnvInt("FORESIGHT_TIMEOUT_SECONDS", 5)) * time.Second,
		ForesightTimeField:  getEnv("FORESIGHT_REPORT_TIME_FIELD", "lastupdate"),
		Timezone:            getEnv("TIMEZONE", "America/Caracas"),
		Thresholds: Thresholds{
			StopMinutes:        getEnvFloat("STOP_THRESHOLD_MINUTES", DefaultThresholds.StopMinutes),
			SpeedKph:           getEnvFloat("SPEED_THRESHOLD_KPH", DefaultThresholds.SpeedKph),
			GPSFaultOnMinutes:  getEnvFloat("GPS_FAULT_ON_MINUTES", DefaultThresholds.GPSFaultOnMinutes),
			GPSFaultOffMinutes: getEnvFloat("GPS_FAULT_OFF_MINUTES", DefaultThresholds.GPSFaultOffMinutes),
			RefreshSeconds:     getEnvInt("REFRESH_INTERVAL_SECONDS", DefaultThresholds.RefreshSeconds),
			ZoneRadiusKm:       getEnvFloat("ZONE_RADIUS_KM", DefaultThresholds.ZoneRadiusKm),
		},
		SnapshotCacheTTL: time.Duration(getEnvInt("SNAPSHOT_CACHE_TTL_SECONDS", 5)) * time.Second,
		EventLogDisplay:  getEnvInt("EVENT_LOG_DISPLAY", 50),
		DismissalScope:   DismissalScope(getEnv("DISMISSAL_SCOPE", string(DismissalGlobal))),
		StopLogPolicy:    StopLogPolicy(getEnv("STOP_LOG_POLICY", string(StopLogArming))),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:     getEnv("APP_JWT_SECRET", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		FirebaseCredentialsBase64: getEnv("FIREBASE_CREDENTIALS_BASE64", ""),
		FirebaseCredentialsFile:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FCMAlertTopic:             getEnv("FCM_ALERT_TOPIC", "fleet-alerts"),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  getEnvInt("SMTP_PORT", 587),
		SMTPUser:                  getEnv("SMTP_USER", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		AlertEmailTo:              splitList(getEnv("ALERT_EMAIL_TO", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently
func (c *Config) Validate() error {
	switch c.DismissalScope {
	case DismissalGlobal, DismissalViewer:
	default:
		return fmt.Errorf("DISMISSAL_SCOPE must be %q or %q, got %q", DismissalGlobal, DismissalViewer, c.DismissalScope)
	}
	switch c.StopLogPolicy {
	case StopLogArming, StopLogMove:
	default:
		return fmt.Errorf("STOP_LOG_POLICY must be %q or %q, got %q", StopLogArming, StopLogMove, c.StopLogPolicy)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.ForesightTimeout <= 0 {
		return fmt.Errorf("FORESIGHT_TIMEOUT_SECONDS must be positive")
	}
	if c.EventLogDisplay <= 0 {
		return fmt.Errorf("EVENT_LOG_DISPLAY must be positive")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used to interpret provider timestamps
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && len(c.AlertEmailTo) > 0
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
