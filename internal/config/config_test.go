package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.Backend != "json" {
		t.Errorf("storage backend = %q, want json", cfg.Storage.Backend)
	}
	if cfg.Worker.Dispatcher != "goroutine" {
		t.Errorf("dispatcher = %q, want goroutine", cfg.Worker.Dispatcher)
	}
	if cfg.Retention.MaxAgeDays != 7 {
		t.Errorf("retention days = %d, want 7", cfg.Retention.MaxAgeDays)
	}
	if cfg.QuickReel.BaseURL != "https://mango.quickreel.io/api/v2" {
		t.Errorf("quickreel base url = %q", cfg.QuickReel.BaseURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("THREAD_POOL_SIZE", "8")
	t.Setenv("PUBLIC_URL", "https://reels.example.com/")
	t.Setenv("STORAGE_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Worker.PoolSize != 8 {
		t.Errorf("pool size = %d, want 8", cfg.Worker.PoolSize)
	}
	if cfg.Server.PublicURL != "https://reels.example.com" {
		t.Errorf("public url = %q, want trailing slash trimmed", cfg.Server.PublicURL)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("storage backend = %q, want redis", cfg.Storage.Backend)
	}
}

func TestReadSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openai_key")
	if err := os.WriteFile(path, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("reads file", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY_FILE", path)

		readSecret("OPENAI_API_KEY")

		if got := os.Getenv("OPENAI_API_KEY"); got != "sk-from-file" {
			t.Errorf("OPENAI_API_KEY = %q, want sk-from-file", got)
		}
	})

	t.Run("direct value wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-direct")
		t.Setenv("OPENAI_API_KEY_FILE", path)

		readSecret("OPENAI_API_KEY")

		if got := os.Getenv("OPENAI_API_KEY"); got != "sk-direct" {
			t.Errorf("OPENAI_API_KEY = %q, want sk-direct", got)
		}
	})

	t.Run("missing file is ignored", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY_FILE", filepath.Join(t.TempDir(), "absent"))

		readSecret("OPENAI_API_KEY")

		if got := os.Getenv("OPENAI_API_KEY"); got != "" {
			t.Errorf("OPENAI_API_KEY = %q, want empty", got)
		}
	})
}
