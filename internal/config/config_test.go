package config

import (
	"testing"
	"time"
)

func TestDefaultJurisdictionRules(t *testing.T) {
	cfg := Default()

	fl := cfg.Retake.For("fl")
	if !fl.Regulated || fl.MaxAttempts != 2 || fl.CooldownDays != 30 || fl.WindowDays != 365 || !fl.RequireAck {
		t.Fatalf("unexpected FL rules: %+v", fl)
	}
	ga := cfg.Retake.For("GA")
	if ga.Regulated || ga.MaxAttempts != 3 || ga.Code != "GA" {
		t.Fatalf("unexpected default rules: %+v", ga)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("REGULATED_JURISDICTIONS", "fl, tx")
	t.Setenv("FINAL_EXAM_MAX_ATTEMPTS_REGULATED", "4")
	t.Setenv("FINAL_EXAM_COOLDOWN_DAYS", "14")
	t.Setenv("POLICY_TIMEZONE", "America/New_York")
	t.Setenv("REVEAL_FINAL_EXAM_FEEDBACK", "yes")
	t.Setenv("QUIZ_TIME_LIMIT_GRACE_SECONDS", "5")

	cfg := FromEnv()
	if cfg.Mode != ModeOnline || cfg.LogMode != "prod" {
		t.Fatalf("mode/log = %s/%s", cfg.Mode, cfg.LogMode)
	}
	if cfg.EnableLocalAuth {
		t.Fatalf("local auth should default off online")
	}
	tx := cfg.Retake.For("TX")
	if !tx.Regulated || tx.MaxAttempts != 4 || tx.CooldownDays != 14 {
		t.Fatalf("TX rules: %+v", tx)
	}
	if cfg.Retake.Location.String() != "America/New_York" {
		t.Fatalf("location = %s", cfg.Retake.Location)
	}
	if !cfg.Quiz.RevealFinalExamFeedback || cfg.Quiz.TimeLimitGrace != 5*time.Second {
		t.Fatalf("quiz cfg: %+v", cfg.Quiz)
	}
}
