package engine

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KB", 1024},
		{"1.5kb", 1536},
		{"4MB", 4 * 1024 * 1024},
		{" 2GB ", 2 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		got, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}

	for _, bad := range []string{"fast", "-1MB", "MB"} {
		if _, err := ParseBytes(bad); err == nil {
			t.Errorf("ParseBytes(%q) expected error", bad)
		}
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
download_dir: /srv/videos
sessdata: abc123
merge: false
delete_intermediates: true
subtitle: true
rate_limit: 2MB
store: sqlite:///var/lib/reel/tasks.db
user_agents:
  - test-agent/1.0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.DownloadDir != "/srv/videos" {
		t.Errorf("DownloadDir = %q", s.DownloadDir)
	}
	if s.SESSDATA != "abc123" {
		t.Errorf("SESSDATA = %q", s.SESSDATA)
	}
	if s.RateLimit != 2*1024*1024 {
		t.Errorf("RateLimit = %d", s.RateLimit)
	}
	if s.Store != "sqlite:///var/lib/reel/tasks.db" {
		t.Errorf("Store = %q", s.Store)
	}
	// 未出现在文件里的字段保持默认
	if !s.Cover {
		t.Error("Cover should keep its default (true)")
	}
	if s.ControlAddr != "127.0.0.1:8086" {
		t.Errorf("ControlAddr = %q", s.ControlAddr)
	}

	opts := s.Options()
	if opts.Merge || !opts.DeleteIntermediates || !opts.Subtitle || !opts.Cover || opts.Danmaku {
		t.Errorf("Options() = %+v", opts)
	}

	if ua := s.RandUserAgent(); ua != "test-agent/1.0" {
		t.Errorf("RandUserAgent() = %q", ua)
	}
}

func TestLoadSettingsBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("rate_limit: quick\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Error("expected error for invalid rate_limit")
	}
}

func TestSettingsLoadFromEnv(t *testing.T) {
	t.Setenv("REEL_SESSDATA", "from-env")
	t.Setenv("REEL_MERGE", "false")
	t.Setenv("REEL_DANMAKU", "1")
	t.Setenv("REEL_RATE_LIMIT", "512KB")

	s := DefaultSettings()
	if err := s.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if s.SESSDATA != "from-env" {
		t.Errorf("SESSDATA = %q", s.SESSDATA)
	}
	if s.Merge {
		t.Error("Merge should be false")
	}
	if !s.Danmaku {
		t.Error("Danmaku should be true")
	}
	if s.RateLimit != 512*1024 {
		t.Errorf("RateLimit = %d", s.RateLimit)
	}

	t.Setenv("REEL_COVER", "maybe")
	if err := s.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid REEL_COVER")
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("default settings invalid: %v", err)
	}

	s.DownloadDir = ""
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty download_dir")
	}

	s = DefaultSettings()
	s.RateLimit = -1
	if err := s.Validate(); err == nil {
		t.Error("expected error for negative rate_limit")
	}
}

func TestRandUserAgentDefaultPool(t *testing.T) {
	s := Settings{}
	if ua := s.RandUserAgent(); !slices.Contains(DefaultUserAgents, ua) {
		t.Errorf("RandUserAgent() = %q not in default pool", ua)
	}
}
