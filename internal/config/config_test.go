package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "data/avocado.sqlite" || cfg.PersistQueue != 4096 || cfg.ClientQueue != 256 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AVOCADO_DB_PATH", "/tmp/town.db")
	t.Setenv("AVOCADO_ALLOWED_ORIGINS", "avocado.town,localhost:5173")
	t.Setenv("AVOCADO_PERSIST_QUEUE", "16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/town.db" || cfg.PersistQueue != 16 {
		t.Fatalf("cfg: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "localhost:5173" {
		t.Fatalf("origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadError(t *testing.T) {
	t.Setenv("AVOCADO_PERSIST_QUEUE", "lots")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Server{Addr: ":8080", DBPath: "x.db", PersistQueue: 1, ClientQueue: 1}
	cases := []struct {
		name   string
		mutate func(*Server)
		want   string
	}{
		{"ok", func(*Server) {}, ""},
		{"empty db path", func(s *Server) { s.DBPath = "" }, "AVOCADO_DB_PATH"},
		{"empty addr", func(s *Server) { s.Addr = "" }, "addr"},
		{"zero persist queue", func(s *Server) { s.PersistQueue = 0 }, "persist queue"},
		{"zero client queue", func(s *Server) { s.ClientQueue = 0 }, "client queue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}
