package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Meeting.ChunkS != 300 {
		t.Errorf("ChunkS = %d, want 300", cfg.Meeting.ChunkS)
	}
	if cfg.Meeting.OverlapS != 5 {
		t.Errorf("OverlapS = %d, want 5", cfg.Meeting.OverlapS)
	}
	if !cfg.Typing.AutoPaste {
		t.Error("AutoPaste should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := `
whisper:
  url: http://stt.local/v1/audio/transcriptions
  language: en
dictate:
  capture_monitor: true
meeting:
  chunk_s: 120
  overlap_s: 3
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Whisper.URL != "http://stt.local/v1/audio/transcriptions" {
		t.Errorf("URL = %q", cfg.Whisper.URL)
	}
	if cfg.Whisper.Language != "en" {
		t.Errorf("Language = %q", cfg.Whisper.Language)
	}
	if !cfg.Dictate.CaptureMonitor {
		t.Error("CaptureMonitor should be true")
	}
	if cfg.Meeting.ChunkS != 120 || cfg.Meeting.OverlapS != 3 {
		t.Errorf("chunking = %d/%d", cfg.Meeting.ChunkS, cfg.Meeting.OverlapS)
	}
	// Untouched sections keep defaults.
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama default lost: %q", cfg.Ollama.BaseURL)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"stereo", func(c *Config) { c.Audio.Channels = 2 }},
		{"no whisper url", func(c *Config) { c.Whisper.URL = "" }},
		{"zero chunk", func(c *Config) { c.Meeting.ChunkS = 0 }},
		{"overlap >= chunk", func(c *Config) { c.Meeting.OverlapS = c.Meeting.ChunkS }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
