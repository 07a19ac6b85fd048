package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTES_API_URL", "")
	t.Setenv("NOTES_STORAGE_DRIVER", "")
	t.Setenv("NOTES_STORAGE_DSN", "")
	t.Setenv("NOTES_REQUEST_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, "http://localhost:8080")
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Errorf("StorageDriver = %q, want sqlite", cfg.StorageDriver)
	}
	if filepath.Base(cfg.StorageDSN) != "session.db" {
		t.Errorf("StorageDSN = %q, want a session.db path", cfg.StorageDSN)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Errorf("rate limit = %v/%d, want 5/10", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOTES_API_URL", "https://notes.example.com")
	t.Setenv("NOTES_STORAGE_DRIVER", "mysql")
	t.Setenv("NOTES_STORAGE_DSN", "u:p@tcp(db:3306)/notes")
	t.Setenv("NOTES_REQUEST_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.APIURL != "https://notes.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.StorageDSN != "u:p@tcp(db:3306)/notes" {
		t.Errorf("StorageDSN = %q", cfg.StorageDSN)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"relative url", map[string]string{"NOTES_API_URL": "/api"}, ErrInvalidAPIURL},
		{"bad scheme", map[string]string{"NOTES_API_URL": "ftp://example.com"}, ErrInvalidAPIURL},
		{"insecure production", map[string]string{"NOTES_API_URL": "http://example.com", "NOTES_ENV": "production"}, ErrInsecureAPIURL},
		{"unknown driver", map[string]string{"NOTES_STORAGE_DRIVER": "postgres"}, ErrUnknownStorageDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv("NOTES_REQUEST_TIMEOUT", "soon")
		if _, err := Load(); err == nil {
			t.Error("Load() expected error for invalid timeout")
		}
	})
}
