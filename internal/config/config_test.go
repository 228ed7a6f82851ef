package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "")
	t.Setenv("AUTO_ESCALATION_THRESHOLD", "")
	t.Setenv("TIER_SLA_OVERRIDES", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.MaxConcurrentSessions != 1000 {
		t.Fatalf("expected default session ceiling, got %d", cfg.MaxConcurrentSessions)
	}
	if cfg.MaxSessionDuration != 4*time.Hour {
		t.Fatalf("expected default max session duration, got %s", cfg.MaxSessionDuration)
	}
	if cfg.AutoEscalationThreshold != 3 {
		t.Fatalf("expected default auto-escalation threshold, got %d", cfg.AutoEscalationThreshold)
	}
	if cfg.TierSLAOverrides != nil {
		t.Fatalf("expected no tier SLA overrides by default, got %v", cfg.TierSLAOverrides)
	}
	if !cfg.EncryptionRequired {
		t.Fatalf("expected encryption required by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "50")
	t.Setenv("MAX_SESSION_DURATION", "2h")
	t.Setenv("AUTO_ESCALATION_THRESHOLD", "5")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.MaxConcurrentSessions != 50 {
		t.Fatalf("expected session ceiling override, got %d", cfg.MaxConcurrentSessions)
	}
	if cfg.MaxSessionDuration != 2*time.Hour {
		t.Fatalf("expected max session duration override, got %s", cfg.MaxSessionDuration)
	}
	if cfg.AutoEscalationThreshold != 5 {
		t.Fatalf("expected auto-escalation override, got %d", cfg.AutoEscalationThreshold)
	}
	if cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue disabled")
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
}

func TestParseTierSLAs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[int]time.Duration
	}{
		{"empty", "", nil},
		{"single", "5=45s", map[int]time.Duration{5: 45 * time.Second}},
		{"multiple", "5=45s, 3=90s", map[int]time.Duration{5: 45 * time.Second, 3: 90 * time.Second}},
		{"skips bad tier", "9=45s,2=2m", map[int]time.Duration{2: 2 * time.Minute}},
		{"skips bad duration", "5=soon", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTierSLAs(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for tier, sla := range tt.want {
				if got[tier] != sla {
					t.Fatalf("tier %d: expected %s, got %s", tier, sla, got[tier])
				}
			}
		})
	}
}
