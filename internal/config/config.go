package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	OutputPath  string `yaml:"output_path"`
	FactsFile   string `yaml:"facts_file"`
	PromptsFile string `yaml:"prompts_file"`
	ArticleURL  string `yaml:"article_url"`
	FactID      string `yaml:"fact_id"`

	LLM       LLMConfig       `yaml:"llm"`
	Vision    VisionConfig    `yaml:"vision"`
	Footage   FootageConfig   `yaml:"footage"`
	Selection SelectionConfig `yaml:"selection"`
	TTS       TTSConfig       `yaml:"tts"`
	Edit      EditConfig      `yaml:"edit"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Store     StoreConfig     `yaml:"store"`
	Index     IndexConfig     `yaml:"index"`
}

// LLMConfig selects the chat completion backend
type LLMConfig struct {
	Provider string `yaml:"provider"` // ollama | openai
	Model    string `yaml:"model"`
	Host     string `yaml:"host"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"`
	NumFacts int    `yaml:"num_facts"`
}

// VisionConfig selects the frame relevance oracle
type VisionConfig struct {
	Provider  string  `yaml:"provider"` // ollama | openai | onnx
	Model     string  `yaml:"model"`
	ModelPath string  `yaml:"model_path"`
	Factor    float64 `yaml:"factor"`
}

// FootageConfig configures video search and download
type FootageConfig struct {
	BinaryPath  string        `yaml:"binary_path"`
	PerQuery    int           `yaml:"per_query"`
	MaxDuration time.Duration `yaml:"max_duration"`
	MinInterval time.Duration `yaml:"min_interval"`
	Cache       CacheConfig   `yaml:"cache"`
}

// CacheConfig configures the search result cache
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory | redis
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

// SelectionConfig configures clip candidate selection
type SelectionConfig struct {
	Strategy          string  `yaml:"strategy"` // exhaustive | trials
	Sections          int     `yaml:"sections"`
	MatchesPerSection int     `yaml:"matches_per_section"`
	IntervalSeconds   float64 `yaml:"interval_seconds"`
	ClipSeconds       float64 `yaml:"clip_seconds"`
	MaxTrials         int     `yaml:"max_trials"`
	OffsetSeconds     float64 `yaml:"offset_seconds"`
	OnExhaustion      string  `yaml:"on_exhaustion"` // take-last-on-exhaustion | skip
	UseKeywords       bool    `yaml:"use_keywords"`
}

// TTSConfig configures narration synthesis
type TTSConfig struct {
	BinaryPath string  `yaml:"binary_path"`
	Model      string  `yaml:"model"`
	Speaker    string  `yaml:"speaker"`
	Normalize  bool    `yaml:"normalize"`
	Loudness   float64 `yaml:"loudness"`
}

// EditConfig configures final shorts assembly
type EditConfig struct {
	Shorts    int            `yaml:"shorts"`
	Width     int            `yaml:"width"`
	Height    int            `yaml:"height"`
	FPS       float64        `yaml:"fps"`
	AudioGain float64        `yaml:"audio_gain"`
	Subtitles SubtitleConfig `yaml:"subtitles"`
}

// SubtitleConfig controls burned-in section captions
type SubtitleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	FontName  string `yaml:"font_name"`
	FontSize  int    `yaml:"font_size"`
	FontColor string `yaml:"font_color"`
}

type FFmpegConfig struct {
	Threads int    `yaml:"threads"`
	Preset  string `yaml:"preset"`
}

// StoreConfig selects the fact repository backend
type StoreConfig struct {
	Backend     string `yaml:"backend"` // file | postgres
	DatabaseURL string `yaml:"database_url"`
	Name        string `yaml:"name"`
}

// IndexConfig configures article retrieval
type IndexConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DatabaseURL string `yaml:"database_url"`
	EmbedModel  string `yaml:"embed_model"`
	ChunkWords  int    `yaml:"chunk_words"`
	Overlap     int    `yaml:"overlap"`
	TopK        int    `yaml:"top_k"`
	Dimensions  int    `yaml:"dimensions"`
}

// Load reads configuration from file or returns defaults. Values from the
// environment (and a .env file, if present) take precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the pipeline cannot work with
func (c *Config) Validate() error {
	if c.OutputPath == "" {
		return fmt.Errorf("output_path is required")
	}
	if c.Selection.Sections <= 0 {
		return fmt.Errorf("selection.sections must be positive, got %d", c.Selection.Sections)
	}
	if c.Selection.IntervalSeconds <= 0 || c.Selection.ClipSeconds <= 0 {
		return fmt.Errorf("selection interval and clip length must be positive")
	}
	if c.Vision.Factor <= 0 || c.Vision.Factor > 1 {
		return fmt.Errorf("vision.factor must be in (0, 1], got %g", c.Vision.Factor)
	}
	switch c.Selection.Strategy {
	case "exhaustive", "trials":
	default:
		return fmt.Errorf("unknown selection strategy %q", c.Selection.Strategy)
	}
	return nil
}

// FactsPath returns the location of the fact document
func (c *Config) FactsPath() string {
	return filepath.Join(c.OutputPath, c.FactsFile)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.LLM.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
		if c.Index.DatabaseURL == "" {
			c.Index.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Footage.Cache.RedisURL = v
	}
}

func defaultConfig() *Config {
	return &Config{
		OutputPath: "./data/output",
		FactsFile:  "fun_facts.json",
		FactID:     "fact1",
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "zephyr",
			Host:     "http://localhost:11434",
			NumFacts: 3,
		},
		Vision: VisionConfig{
			Provider:  "ollama",
			Model:     "llava",
			ModelPath: "./models/frame-relevance.onnx",
			Factor:    0.2,
		},
		Footage: FootageConfig{
			BinaryPath:  "yt-dlp",
			PerQuery:    3,
			MaxDuration: 15 * time.Minute,
			MinInterval: time.Second,
			Cache: CacheConfig{
				Backend: "memory",
				TTL:     time.Hour,
			},
		},
		Selection: SelectionConfig{
			Strategy:          "exhaustive",
			Sections:          3,
			MatchesPerSection: 2,
			IntervalSeconds:   10,
			ClipSeconds:       10,
			MaxTrials:         3,
			OffsetSeconds:     5,
			OnExhaustion:      "take-last-on-exhaustion",
			UseKeywords:       true,
		},
		TTS: TTSConfig{
			BinaryPath: "tts",
			Model:      "tts_models/en/vctk/vits",
			Speaker:    "p314",
			Loudness:   -16,
		},
		Edit: EditConfig{
			Shorts:    3,
			Width:     1080,
			Height:    1920,
			FPS:       24,
			AudioGain: 2.0,
			Subtitles: SubtitleConfig{
				FontName:  "Arial",
				FontSize:  14,
				FontColor: "#FFFF00",
			},
		},
		FFmpeg: FFmpegConfig{
			Threads: 0,
			Preset:  "medium",
		},
		Store: StoreConfig{
			Backend: "file",
			Name:    "fun_facts",
		},
		Index: IndexConfig{
			EmbedModel: "mxbai-embed-large",
			ChunkWords: 50,
			Overlap:    10,
			TopK:       5,
			Dimensions: 1024,
		},
	}
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	candidates := []string{
		"./factreel.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".factreel", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
