package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // POLICY_TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Jurisdiction is the final-exam retake rule set for one licensing jurisdiction.
type Jurisdiction struct {
	Code         string
	Regulated    bool
	MaxAttempts  int
	CooldownDays int
	WindowDays   int
	RequireAck   bool // learner must acknowledge the retake policy before the first attempt
}

type Retake struct {
	Default    Jurisdiction
	Overrides  map[string]Jurisdiction // keyed by upper-case jurisdiction code
	MaxRetries int                     // compare-and-swap retries when reserving an attempt
	Location   *time.Location          // calendar used for day-granular cooldown/window dates
}

// For returns the rules for a jurisdiction code, falling back to Default.
func (r Retake) For(code string) Jurisdiction {
	if j, ok := r.Overrides[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return j
	}
	j := r.Default
	j.Code = strings.ToUpper(strings.TrimSpace(code))
	return j
}

type Progress struct {
	MinLessonSeconds int64
	MaxIncrementSecs int64
}

type Quiz struct {
	TimeLimitGrace          time.Duration
	RevealFinalExamFeedback bool
}

type Events struct {
	SiteID        string
	RedisAddr     string
	RedisChannel  string
	RelaySchedule string // cron spec
	RelayBatch    int
}

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	DBDriver string
	DBDSN    string

	AuthHMACSecret  string
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOrigins []string

	Retake   Retake
	Progress Progress
	Quiz     Quiz
	Events   Events
}

// Default returns the built-in configuration without consulting the environment.
func Default() Config {
	return Config{
		Mode:            ModeOffline,
		HTTPAddr:        ":8080",
		LogMode:         "dev",
		DBDriver:        "sqlite",
		AuthHMACSecret:  "supersecret-dev-key",
		EnableLocalAuth: true,
		AdminUser:       "admin",
		AdminPassHash:   "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji",
		CORSOrigins:     []string{"http://localhost:3000"},
		Retake:          defaultRetake([]string{"FL"}, 3, 2, 30, 365, true, 5, time.UTC),
		Progress: Progress{
			MinLessonSeconds: 60,
			MaxIncrementSecs: 120,
		},
		Quiz: Quiz{
			TimeLimitGrace: 30 * time.Second,
		},
		Events: Events{
			SiteID:        "local",
			RedisChannel:  "coursegate.events",
			RelaySchedule: "@every 30s",
			RelayBatch:    100,
		},
	}
}

func defaultRetake(regulated []string, maxAttempts, maxRegulated, cooldown, window int, requireAck bool, retries int, loc *time.Location) Retake {
	r := Retake{
		Default: Jurisdiction{
			MaxAttempts:  maxAttempts,
			CooldownDays: cooldown,
			WindowDays:   window,
		},
		Overrides:  map[string]Jurisdiction{},
		MaxRetries: retries,
		Location:   loc,
	}
	for _, code := range regulated {
		code = strings.ToUpper(code)
		r.Overrides[code] = Jurisdiction{
			Code:         code,
			Regulated:    true,
			MaxAttempts:  maxRegulated,
			CooldownDays: cooldown,
			WindowDays:   window,
			RequireAck:   requireAck,
		}
	}
	return r
}

// FromEnv loads an optional .env file and overlays process environment on Default.
func FromEnv() Config {
	_ = godotenv.Load()

	d := Default()
	mode := Mode(envOr("MODE", string(d.Mode)))
	logMode := d.LogMode
	if mode == ModeOnline {
		logMode = "prod"
	}

	loc := time.UTC
	if tz := os.Getenv("POLICY_TIMEZONE"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	return Config{
		Mode:            mode,
		HTTPAddr:        envOr("HTTP_ADDR", d.HTTPAddr),
		LogMode:         envOr("LOG_MODE", logMode),
		DBDriver:        envOr("DB_DRIVER", d.DBDriver),
		DBDSN:           envOr("DB_DSN", ""),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", d.AuthHMACSecret),
		EnableLocalAuth: envBool("ENABLE_LOCAL_AUTH", mode == ModeOffline),
		AdminUser:       envOr("ADMIN_USER", d.AdminUser),
		AdminPassHash:   envOr("ADMIN_PASS_HASH", d.AdminPassHash),
		CORSOrigins:     csvOr("CORS_ORIGINS", strings.Join(d.CORSOrigins, ",")),
		Retake: defaultRetake(
			csvOr("REGULATED_JURISDICTIONS", "FL"),
			envInt("FINAL_EXAM_MAX_ATTEMPTS", 3),
			envInt("FINAL_EXAM_MAX_ATTEMPTS_REGULATED", 2),
			envInt("FINAL_EXAM_COOLDOWN_DAYS", 30),
			envInt("FINAL_EXAM_WINDOW_DAYS", 365),
			envBool("FINAL_EXAM_REQUIRE_ACK", true),
			envInt("RESERVE_MAX_RETRIES", d.Retake.MaxRetries),
			loc,
		),
		Progress: Progress{
			MinLessonSeconds: int64(envInt("LESSON_MIN_SECONDS", int(d.Progress.MinLessonSeconds))),
			MaxIncrementSecs: int64(envInt("TIME_INCREMENT_CAP_SECONDS", int(d.Progress.MaxIncrementSecs))),
		},
		Quiz: Quiz{
			TimeLimitGrace:          time.Duration(envInt("QUIZ_TIME_LIMIT_GRACE_SECONDS", 30)) * time.Second,
			RevealFinalExamFeedback: envBool("REVEAL_FINAL_EXAM_FEEDBACK", false),
		},
		Events: Events{
			SiteID:        envOr("SITE_ID", d.Events.SiteID),
			RedisAddr:     envOr("REDIS_ADDR", ""),
			RedisChannel:  envOr("REDIS_CHANNEL", d.Events.RedisChannel),
			RelaySchedule: envOr("EVENT_RELAY_SCHEDULE", d.Events.RelaySchedule),
			RelayBatch:    envInt("EVENT_RELAY_BATCH", d.Events.RelayBatch),
		},
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
