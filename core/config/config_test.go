package config

import "testing"

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Telegram.SessionTTLMinutes != 30 {
		t.Errorf("session ttl = %d, want default 30", cfg.Telegram.SessionTTLMinutes)
	}
	if cfg.Storage.Driver != StorageDriverPostgres {
		t.Errorf("storage driver = %q, want postgres", cfg.Storage.Driver)
	}
}

func TestNormalizeRejectsMissingToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizeWebhookRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url/listen/port")
	}

	cfg = validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
}

func TestNormalizeStorageDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = "Memory"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Storage.Driver != StorageDriverMemory {
		t.Errorf("storage driver = %q, want memory", cfg.Storage.Driver)
	}

	cfg = validConfig()
	cfg.Storage.Driver = "mongo"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"Message"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateMessage {
		t.Errorf("exclusion = %q, want normalized %q", cfg.RateLimit.ExcludeUpdates[0], UpdateMessage)
	}

	for _, bad := range []string{"callback", "inline_query"} {
		cfg = validConfig()
		cfg.RateLimit.ExcludeUpdates = []string{bad}
		if err := Normalize(cfg); err == nil {
			t.Fatalf("expected error for unsupported exclusion %q", bad)
		}
	}
}
