package common

import (
	"testing"
	"time"

	"insurance-vault-go/internal/models"
)

func TestJournalConfig(t *testing.T) {
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            "vault_actions.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			PingTimeout:     5 * time.Second,
		},
	}

	db := JournalConfig(cfg)
	if db.Path != "vault_actions.db" || db.MaxOpenConns != 10 {
		t.Errorf("Expected configured journal for a live chain, got %+v", db)
	}

	cfg.Chain.Simulate = true
	db = JournalConfig(cfg)
	if db.Path != ":memory:" {
		t.Errorf("Expected in-memory journal when simulating, got %q", db.Path)
	}
	if db.MaxOpenConns != 1 || db.ConnMaxLifetime != 0 {
		t.Errorf("Expected a single long-lived connection, got %+v", db)
	}
	if db.PingTimeout != 5*time.Second {
		t.Errorf("Expected PingTimeout to be kept, got %v", db.PingTimeout)
	}
	if cfg.Database.Path != "vault_actions.db" {
		t.Errorf("Expected config to be left untouched, got %q", cfg.Database.Path)
	}
}
