package config

import "testing"

func TestValidateDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.App.Port = 8084
	cfg.JWT.HSSecret = "s"

	if err := validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory default, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Prefix == "" {
		t.Error("expected default prefix")
	}
}

func TestValidateRejectsIncompleteBackends(t *testing.T) {
	cfg := &Config{}
	cfg.App.Port = 8084
	cfg.JWT.HSSecret = "s"

	cfg.Store.Backend = "redis"
	if err := validate(cfg); err == nil {
		t.Error("redis backend without addr must fail")
	}

	cfg.Store.Backend = "mongo"
	if err := validate(cfg); err == nil {
		t.Error("mongo backend without uri must fail")
	}

	cfg.Store.Backend = "carrier-pigeon"
	if err := validate(cfg); err == nil {
		t.Error("unknown backend must fail")
	}
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := &Config{}
	cfg.App.Port = 8084
	if err := validate(cfg); err == nil {
		t.Error("missing jwt secret must fail")
	}
}
