// Package config loads the murmur YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Audio struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

type Whisper struct {
	// URL of an OpenAI-compatible /audio/transcriptions endpoint.
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	TimeoutS int    `yaml:"timeout_s"`
}

type Ollama struct {
	BaseURL       string `yaml:"base_url"`
	CleanupModel  string `yaml:"cleanup_model"`
	VisionModel   string `yaml:"vision_model"`
	SummaryModel  string `yaml:"summary_model"`
	CleanupPrompt string `yaml:"cleanup_prompt"`
	SummaryPrompt string `yaml:"summary_prompt"`
	TimeoutS      int    `yaml:"timeout_s"`
}

func (w Whisper) Timeout() time.Duration {
	return time.Duration(w.TimeoutS) * time.Second
}

func (o Ollama) Timeout() time.Duration {
	return time.Duration(o.TimeoutS) * time.Second
}

type Dictate struct {
	CaptureMonitor bool `yaml:"capture_monitor"`
}

type Meeting struct {
	OutputDir     string `yaml:"output_dir"`
	MicSource     string `yaml:"mic_source"`
	MonitorSource string `yaml:"monitor_source"`
	ChunkS        int    `yaml:"chunk_s"`
	OverlapS      int    `yaml:"overlap_s"`
}

type Typing struct {
	AutoPaste bool `yaml:"auto_paste"`
}

type Notifications struct {
	Enabled bool `yaml:"enabled"`
	Sound   bool `yaml:"sound"`
}

type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Audio         Audio         `yaml:"audio"`
	Whisper       Whisper       `yaml:"whisper"`
	Ollama        Ollama        `yaml:"ollama"`
	Dictate       Dictate       `yaml:"dictate"`
	Meeting       Meeting       `yaml:"meeting"`
	Typing        Typing        `yaml:"typing"`
	Notifications Notifications `yaml:"notifications"`
	History       History       `yaml:"history"`
}

const defaultCleanupPrompt = `You are a voice transcription polishing assistant.
Receive raw transcribed text and return ONLY the cleaned text:
- Remove hesitations (uh, uhm, hmm, eh, like, you know, so, well)
- Add correct punctuation
- Fix obvious transcription errors
- Keep the original meaning intact
- ALWAYS respond in the SAME LANGUAGE as the input text
- Respond ONLY with the cleaned text, no explanations or preambles.`

const defaultSummaryPrompt = `You are a meeting minutes assistant.
Receive a meeting transcription and generate:
1. SUMMARY: short paragraphs with the main points
2. DECISIONS: list of decisions made
3. ACTION ITEMS: task list with responsible people (if mentioned)
4. TOPICS: list of subjects discussed
Format: clean and organized Markdown.
IMPORTANT: Respond in the SAME LANGUAGE as the transcription.`

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Audio: Audio{SampleRate: 16000, Channels: 1},
		Whisper: Whisper{
			URL:      "http://localhost:8000/v1/audio/transcriptions",
			Model:    "large-v3",
			TimeoutS: 300,
		},
		Ollama: Ollama{
			BaseURL:       "http://localhost:11434",
			CleanupModel:  "llama3.2",
			VisionModel:   "gemma3:12b",
			SummaryModel:  "llama3.2",
			CleanupPrompt: defaultCleanupPrompt,
			SummaryPrompt: defaultSummaryPrompt,
			TimeoutS:      120,
		},
		Meeting: Meeting{
			OutputDir: filepath.Join(home, "Murmur", "meetings"),
			ChunkS:    300,
			OverlapS:  5,
		},
		Typing:        Typing{AutoPaste: true},
		Notifications: Notifications{Enabled: true, Sound: true},
		History: History{
			Enabled: true,
			Path:    filepath.Join(home, ".local", "share", "murmur", "history.sqlite"),
		},
	}
}

// Load reads configuration from YAML. Search order:
// 1. explicit path, 2. ./murmur.yaml, 3. $XDG_CONFIG_HOME/murmur/config.yaml.
// A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	var search []string
	if path != "" {
		search = append(search, path)
	} else {
		wd, _ := os.Getwd()
		search = append(search, filepath.Join(wd, "murmur.yaml"))
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			home, _ := os.UserHomeDir()
			xdg = filepath.Join(home, ".config")
		}
		search = append(search, filepath.Join(xdg, "murmur", "config.yaml"))
	}

	for _, p := range search {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return cfg, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", p, err)
		}
		break
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio.channels must be 1, got %d", c.Audio.Channels)
	}
	if c.Whisper.URL == "" {
		return fmt.Errorf("whisper.url is required")
	}
	if c.Meeting.ChunkS <= 0 {
		return fmt.Errorf("meeting.chunk_s must be positive, got %d", c.Meeting.ChunkS)
	}
	if c.Meeting.OverlapS < 0 || c.Meeting.OverlapS >= c.Meeting.ChunkS {
		return fmt.Errorf("meeting.overlap_s must be in [0, chunk_s), got %d", c.Meeting.OverlapS)
	}
	return nil
}
