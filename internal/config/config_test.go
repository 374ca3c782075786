package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesRewardsServiceInternalAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "INTERNAL_API_KEY")
	setEnvWithCleanup(t, "REWARDS_SERVICE_INTERNAL_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "alias-only-key" {
		t.Fatalf("expected InternalAPIKey from alias env var, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_InternalAPIKeyTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "INTERNAL_API_KEY", "primary-key")
	setEnvWithCleanup(t, "REWARDS_SERVICE_INTERNAL_API_KEY", "alias-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "primary-key" {
		t.Fatalf("expected InternalAPIKey to prioritize INTERNAL_API_KEY, got %q", cfg.InternalAPIKey)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{
		"TASK_DAILY_LIMIT", "CLAIM_BASE_LIMIT", "REFERRALS_PER_BONUS_BLOCK",
		"BONUS_CLAIMS_PER_BLOCK", "CLAIM_DELAY_MINUTES", "CLAIM_MIN_POINTS",
		"CLAIM_MAX_POINTS", "REFERRAL_POINTS", "WITHDRAWAL_MIN_POINTS",
	} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TaskDailyLimit != 5 {
		t.Fatalf("expected default TaskDailyLimit=5, got %d", cfg.TaskDailyLimit)
	}
	if cfg.ClaimBaseLimit != 1 {
		t.Fatalf("expected default ClaimBaseLimit=1, got %d", cfg.ClaimBaseLimit)
	}
	if cfg.ClaimDelayMinutes != 15 {
		t.Fatalf("expected default ClaimDelayMinutes=15, got %d", cfg.ClaimDelayMinutes)
	}
	if cfg.ReferralsPerBonusBlock != 5 {
		t.Fatalf("expected default ReferralsPerBonusBlock=5, got %d", cfg.ReferralsPerBonusBlock)
	}
}

func TestLoadConfig_ClaimMaxCoercedUpToMin(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CLAIM_MIN_POINTS", "50")
	setEnvWithCleanup(t, "CLAIM_MAX_POINTS", "5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ClaimMaxPoints != cfg.ClaimMinPoints {
		t.Fatalf("expected ClaimMaxPoints raised to min %d, got %d", cfg.ClaimMinPoints, cfg.ClaimMaxPoints)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
