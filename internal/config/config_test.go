package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: attendo
  user: attendo
  password: secret
auth:
  access_secret: s1
  assertion_secret: s2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.FaceServer.Port != 5001 {
		t.Errorf("FaceServer.Port = %d, want 5001", cfg.FaceServer.Port)
	}
	if cfg.FaceServer.MaxUploadMB != 5 {
		t.Errorf("MaxUploadMB = %d, want 5", cfg.FaceServer.MaxUploadMB)
	}
	if cfg.Auth.AssertionTTL.Std() != time.Minute {
		t.Errorf("AssertionTTL = %v, want 1m", cfg.Auth.AssertionTTL)
	}
	if cfg.Workday.LateAfter != "09:15" {
		t.Errorf("LateAfter = %q, want 09:15", cfg.Workday.LateAfter)
	}
	if cfg.Email.Provider != "console" {
		t.Errorf("Email.Provider = %q, want console", cfg.Email.Provider)
	}
}

func TestLoadParsesHumanDurations(t *testing.T) {
	path := writeConfig(t, `
auth:
  access_secret: s1
  assertion_secret: s2
  access_ttl: 12h
  assertion_ttl: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Auth.AccessTTL.Std() != 12*time.Hour {
		t.Errorf("AccessTTL = %v, want 12h", cfg.Auth.AccessTTL.Std())
	}
	if cfg.Auth.AssertionTTL.Std() != 90*time.Second {
		t.Errorf("AssertionTTL = %v, want 90s", cfg.Auth.AssertionTTL.Std())
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
auth:
  access_ttl: soon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  host: localhost
`)

	t.Setenv("ATTENDO_SERVER_PORT", "7777")
	t.Setenv("ATTENDO_DB_PASSWORD", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("Database.Password = %q, want from-env", cfg.Database.Password)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "attendo", User: "u", Password: "p"}
	want := "postgres://u:p@db:5432/attendo?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLateCutoff(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:15", 9, 15, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"09:60", 0, 0, true},
		{"garbage", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := WorkdayConfig{LateAfter: tt.in}.LateCutoff()
		if tt.wantErr {
			if err == nil {
				t.Errorf("LateCutoff(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("LateCutoff(%q): %v", tt.in, err)
			continue
		}
		if h != tt.hour || m != tt.minute {
			t.Errorf("LateCutoff(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}
