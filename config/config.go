package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. It is built once in main and passed down.
type Config struct {
	Env  string
	Port string

	// Database; DBDriver "sqlite" treats DBName as a file path.
	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMaxOpen  int
	DBMaxIdle  int

	// HTTP limits
	AllowedOrigins  string
	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Google Calendar
	GoogleCredentialsFile string
	CalendarID            string

	// SMTP
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	MailFromName     string
	MailFromAddress  string
	ContactRecipient string

	// Billing
	SessionBaseRate      float64
	SessionExtendedRate  float64
	DefaultCenterPercent float64
	DefaultIRPFPercent   float64
	DefaultIVAPercent    float64

	// Location is used for month/quarter boundaries and the jobs scheduler.
	TimeZone string
	Location *time.Location

	LogLevel    string
	JobsEnabled bool
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		Env:  envStr("APP_ENV", "production"),
		Port: envStr("PORT", "8080"),

		DBDriver:   envStr("DB_DRIVER", "postgres"),
		DBHost:     envStr("DB_HOST", "db"),
		DBPort:     envInt("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  envStr("DB_SSLMODE", "disable"),
		DBMaxOpen:  envInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdle:  envInt("DB_MAX_IDLE_CONNS", 5),

		AllowedOrigins:  envStr("ALLOWED_ORIGINS", "*"),
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		JWTSecret: envStr("JWT_SECRET_KEY", os.Getenv("JWT_SECRET")),
		JWTTTL:    time.Duration(envInt("JWT_TTL_HOURS", 24)) * time.Hour,

		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		CalendarID:            envStr("GOOGLE_CALENDAR_ID", "primary"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         envInt("SMTP_PORT", 587),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		MailFromName:     envStr("MAIL_FROM_NAME", "Consulta"),
		MailFromAddress:  os.Getenv("MAIL_FROM_ADDRESS"),
		ContactRecipient: os.Getenv("CONTACT_RECIPIENT"),

		SessionBaseRate:      envFloat("SESSION_BASE_RATE", 55),
		SessionExtendedRate:  envFloat("SESSION_EXTENDED_RATE", 70),
		DefaultCenterPercent: envFloat("INVOICE_CENTER_PERCENT", 40),
		DefaultIRPFPercent:   envFloat("INVOICE_IRPF_PERCENT", 15),
		DefaultIVAPercent:    envFloat("INVOICE_IVA_PERCENT", 0),

		TimeZone: envStr("TZ_NAME", "Europe/Madrid"),

		LogLevel:    envStr("LOG_LEVEL", "info"),
		JobsEnabled: envBool("JOBS_ENABLED", false),
	}

	// Fiber default BodyLimit is 4MB; BODY_LIMIT_BYTES wins over BODY_LIMIT_MB.
	cfg.BodyLimitBytes = envInt("BODY_LIMIT_BYTES", 0)
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = envInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	cfg.Location = loc

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return cfg, fmt.Errorf("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	return cfg, nil
}

// DSN renders the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.TimeZone)
}

// Development reports whether human-readable logs and debug output are wanted.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// SMTPEnabled reports whether outbound mail can actually be delivered.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.MailFromAddress != ""
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
