// Package config holds the user preference file. The configuration is an
// explicit object loaded at startup, passed into the front end, and written
// back on change; nothing in the app reads preferences through global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"

	"github.com/ytget/mgrab/internal/model"
	"github.com/ytget/mgrab/internal/platform"
)

// Limits and defaults
const (
	DefaultMaxParallel = 5
	MinParallel        = 1
	MaxParallel        = 10

	envPrefix      = "mgrab"
	configFileName = "config.json"
	filePermission = 0644
)

// Config is the persisted preference set. JSON tags drive the preference
// file, envconfig tags allow MGRAB_* environment overrides.
type Config struct {
	OutputDir   string   `json:"output_dir" envconfig:"OUTPUT_DIR"`
	AudioFormat string   `json:"audio_format" envconfig:"AUDIO_FORMAT"`
	VideoFormat string   `json:"video_format" envconfig:"VIDEO_FORMAT"`
	Quality     string   `json:"quality" envconfig:"QUALITY"`
	Proxy       string   `json:"proxy" envconfig:"PROXY"`
	MaxParallel int      `json:"max_parallel" envconfig:"MAX_PARALLEL"`
	Retries     int      `json:"retries" envconfig:"RETRIES"`
	RateLimit   string   `json:"rate_limit" envconfig:"RATE_LIMIT"`
	SubLangs    []string `json:"sub_langs" envconfig:"SUB_LANGS"`
	DataDir     string   `json:"data_dir" envconfig:"DATA_DIR"`
}

// Default returns the configuration used when no preference file exists.
func Default() Config {
	outputDir, err := platform.HomeDownloadsDir()
	if err != nil {
		outputDir = model.DefaultOutputDir
	}
	return Config{
		OutputDir:   outputDir,
		AudioFormat: model.DefaultAudioFormat,
		VideoFormat: model.DefaultVideoFormat,
		Quality:     model.DefaultQuality,
		MaxParallel: DefaultMaxParallel,
		Retries:     model.DefaultRetries,
		SubLangs:    []string{"en"},
	}
}

// DefaultPath returns the conventional preference file location,
// ~/.config/mgrab/config.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(configDir, envPrefix, configFileName)
}

// Load reads the preference file at path, fills missing fields with defaults
// and applies MGRAB_* environment overrides. A missing file is not an error:
// the defaults are returned so a first run works out of the box.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run, keep defaults.
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// Save writes the preference file, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := platform.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// HistoryPath returns the location of the download history database.
func (c Config) HistoryPath() string {
	dataDir := c.DataDir
	if dataDir == "" {
		if cacheDir, err := os.UserCacheDir(); err == nil {
			dataDir = filepath.Join(cacheDir, envPrefix)
		} else {
			dataDir = "." + envPrefix
		}
	}
	return filepath.Join(dataDir, "history.db")
}

// Request builds a download request carrying the configured defaults for the
// given kind and URL.
func (c Config) Request(kind model.MediaKind, url string) model.Request {
	req := model.Request{
		URL:       url,
		Kind:      kind,
		Quality:   c.Quality,
		OutputDir: c.OutputDir,
		Proxy:     c.Proxy,
		Retries:   c.Retries,
		RateLimit: c.RateLimit,
		SubLangs:  c.SubLangs,
	}
	switch kind {
	case model.KindAudio, model.KindPlaylist:
		req.Format = c.AudioFormat
	case model.KindVideo, model.KindVideoWithSubs:
		req.Format = c.VideoFormat
	}
	return req.Normalized()
}

// normalize clamps out-of-range values instead of failing: a hand-edited
// preference file should degrade, not crash the app.
func (c *Config) normalize() {
	if c.MaxParallel < MinParallel {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.MaxParallel > MaxParallel {
		c.MaxParallel = MaxParallel
	}
	if c.Retries < 1 {
		c.Retries = model.DefaultRetries
	}
	if c.OutputDir == "" {
		c.OutputDir = model.DefaultOutputDir
	}
	if c.AudioFormat == "" {
		c.AudioFormat = model.DefaultAudioFormat
	}
	if c.VideoFormat == "" {
		c.VideoFormat = model.DefaultVideoFormat
	}
	if c.Quality == "" {
		c.Quality = model.DefaultQuality
	}
}
