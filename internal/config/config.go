package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config is the full environment-driven configuration. A .env file in
// the working directory is honored when present; real environment
// variables win.
type Config struct {
	Port        string `envconfig:"PORT" default:"3333"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// AppURL is the link included in reminder emails.
	AppURL string `envconfig:"APP_URL" default:"http://localhost:3333"`

	// Email transport. With no API key the console sender is used and
	// reminder emails are logged instead of delivered.
	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	EmailFromName  string `envconfig:"EMAIL_FROM_NAME" default:"Checkin"`
	EmailFromAddr  string `envconfig:"EMAIL_FROM_ADDR" default:"notifications@checkin.local"`

	// Reminder trigger tuning. Defaults match the interactive surface's
	// deadlines: daily nudge at 6 PM member-local, weekly nudge
	// Saturday 10 AM member-local, with a window wide enough for a
	// 15-minute cron.
	// ReminderRunSecret guards the cron entrypoint. When set, POST
	// /api/v1/reminders/run requires a matching X-Cron-Secret header.
	ReminderRunSecret string `envconfig:"REMINDER_RUN_SECRET"`

	DailyTriggerHour  int `envconfig:"REMINDER_DAILY_HOUR" default:"18"`
	WeeklyTriggerHour int `envconfig:"REMINDER_WEEKLY_HOUR" default:"10"`
	TriggerWindowMin  int `envconfig:"REMINDER_WINDOW_MIN" default:"15"`
	MaxLogEntries     int `envconfig:"REMINDER_MAX_LOG" default:"500"`

	MetricsUser string `envconfig:"METRICS_USER"`
	MetricsPass string `envconfig:"METRICS_PASS"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// NewLogger returns the application's zerolog logger.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("service", "checkin-api").
		Timestamp().
		Logger()
}
