package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
telegram:
  token: test-token
owner:
  user_id: 42
`

func TestParseYAMLWithDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	m := NewManager(writeConfig(t, "config.yaml", minimalYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "test-token" || cfg.Owner.UserID != 42 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Storage.Path != "./data/mailerbot.db" {
		t.Errorf("storage default = %q", cfg.Storage.Path)
	}
	if cfg.Sessions.Dir != "./data/sessions" || cfg.Media.Dir != "./data/media" {
		t.Errorf("dir defaults = %q / %q", cfg.Sessions.Dir, cfg.Media.Dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging default = %q", cfg.Logging.Level)
	}
	if !cfg.Dispatcher.IsEnabled() {
		t.Error("dispatcher should default to enabled")
	}
}

func TestParseJSON(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	body := `{"telegram":{"token":"t"},"owner":{"user_id":7},"dispatcher":{"enabled":false,"rate_per_sec":3}}`
	m := NewManager(writeConfig(t, "config.json", body))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Dispatcher.IsEnabled() {
		t.Error("explicit enabled:false ignored")
	}
	if cfg.Dispatcher.RatePerSec != 3 {
		t.Errorf("rate_per_sec = %d", cfg.Dispatcher.RatePerSec)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	m := NewManager(writeConfig(t, "config.yaml", minimalYAML+"\nmistyped_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestTokenFallsBackToEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	m := NewManager(writeConfig(t, "config.yaml", "owner:\n  user_id: 42\n"))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env fallback", cfg.Telegram.Token)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing token", "owner:\n  user_id: 42\n", "telegram.token"},
		{"missing owner", "telegram:\n  token: t\n", "owner.user_id"},
		{"bad duration", minimalYAML + "storage:\n  busy_timeout: sometimes\n", "busy_timeout"},
		{"unknown section", minimalYAML + "telegram2: {}\n", "telegram2"},
		{"negative rate", minimalYAML + "dispatcher:\n  rate_per_sec: -1\n", "rate_per_sec"},
	}
	for _, tc := range cases {
		m := NewManager(writeConfig(t, "config.yaml", tc.body))
		_, err := m.Parse()
		if err == nil {
			t.Errorf("%s: accepted", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90*time.Second {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if d, err := ParseDurationOrDefault("x", "", 7*time.Second); err != nil || d != 7*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "t"}, Owner: OwnerConfig{UserID: 1}}
	b := &Config{Telegram: TelegramConfig{Token: "t"}, Owner: OwnerConfig{UserID: 1}}
	if diff := Summarize(a, b); len(diff) != 0 {
		t.Fatalf("identical configs differ: %v", diff)
	}

	b.Logging.Level = "debug"
	off := false
	b.Dispatcher.Enabled = &off
	diff := Summarize(a, b)
	if len(diff) != 2 || diff[0] != "logging" || diff[1] != "dispatcher" {
		t.Fatalf("diff = %v, want [logging dispatcher]", diff)
	}

	// Token values must never appear in the summary.
	a.Telegram.Token = "secret-old"
	b.Telegram.Token = "secret-new"
	for _, s := range Summarize(a, b) {
		if strings.Contains(s, "secret") {
			t.Fatalf("summary leaks a value: %q", s)
		}
	}
}

func TestReloadPublishesOnChange(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := writeConfig(t, "config.yaml", minimalYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Same content hashes identically and publishes nothing.
	m.reload()
	select {
	case cfg := <-sub:
		t.Fatalf("unchanged file published %+v", cfg)
	default:
	}

	if err := os.WriteFile(path, []byte(minimalYAML+"logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published config = %+v", cfg)
		}
	case <-time.After(time.Second):
		t.Fatal("no publish after content change")
	}
	if got := m.Get(); got.Logging.Level != "debug" {
		t.Fatalf("Get after reload = %+v", got)
	}
}

func TestReloadKeepsLastGoodConfig(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	path := writeConfig(t, "config.yaml", minimalYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if err := os.WriteFile(path, []byte("owner: [broken\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.reload()
	if got := m.Get(); got == nil || got.Owner.UserID != 42 {
		t.Fatalf("broken file replaced the running config: %+v", got)
	}
}
