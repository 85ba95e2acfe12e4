package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ytget/mgrab/internal/model"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.AudioFormat != model.DefaultAudioFormat {
		t.Errorf("Expected audio format %q, got %q", model.DefaultAudioFormat, cfg.AudioFormat)
	}
	if cfg.MaxParallel != DefaultMaxParallel {
		t.Errorf("Expected max parallel %d, got %d", DefaultMaxParallel, cfg.MaxParallel)
	}
	if cfg.Retries != model.DefaultRetries {
		t.Errorf("Expected retries %d, got %d", model.DefaultRetries, cfg.Retries)
	}
	if cfg.OutputDir == "" {
		t.Error("Expected a non-empty default output dir")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() on missing file failed: %v", err)
	}
	if cfg.AudioFormat != model.DefaultAudioFormat {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	cfg := Default()
	cfg.OutputDir = "/media/music"
	cfg.AudioFormat = "flac"
	cfg.MaxParallel = 3
	cfg.Proxy = "socks5://localhost:9050"
	cfg.SubLangs = []string{"en", "de"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.OutputDir != "/media/music" || loaded.AudioFormat != "flac" {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
	if loaded.MaxParallel != 3 {
		t.Errorf("Expected max parallel 3, got %d", loaded.MaxParallel)
	}
	if len(loaded.SubLangs) != 2 || loaded.SubLangs[1] != "de" {
		t.Errorf("Expected sub langs to survive, got %v", loaded.SubLangs)
	}
}

func TestLoadClampsBrokenValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := []byte(`{"max_parallel": 99, "retries": -2, "output_dir": ""}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MaxParallel != MaxParallel {
		t.Errorf("Expected max parallel clamped to %d, got %d", MaxParallel, cfg.MaxParallel)
	}
	if cfg.Retries != model.DefaultRetries {
		t.Errorf("Expected retries reset to %d, got %d", model.DefaultRetries, cfg.Retries)
	}
	if cfg.OutputDir == "" {
		t.Error("Expected empty output dir to be replaced")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed config")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("MGRAB_AUDIO_FORMAT", "ogg")
	t.Setenv("MGRAB_MAX_PARALLEL", "2")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AudioFormat != "ogg" {
		t.Errorf("Expected env override for audio format, got %q", cfg.AudioFormat)
	}
	if cfg.MaxParallel != 2 {
		t.Errorf("Expected env override for max parallel, got %d", cfg.MaxParallel)
	}
}

func TestConfigRequest(t *testing.T) {
	cfg := Default()
	cfg.AudioFormat = "flac"
	cfg.VideoFormat = "mkv"
	cfg.Proxy = "http://proxy:8080"
	cfg.Retries = 4

	audio := cfg.Request(model.KindAudio, "https://youtube.com/watch?v=a")
	if audio.Format != "flac" {
		t.Errorf("Expected audio request format flac, got %q", audio.Format)
	}
	if audio.Proxy != "http://proxy:8080" || audio.Retries != 4 {
		t.Errorf("Expected config defaults carried into request: %+v", audio)
	}

	video := cfg.Request(model.KindVideo, "https://youtube.com/watch?v=b")
	if video.Format != "mkv" {
		t.Errorf("Expected video request format mkv, got %q", video.Format)
	}

	subs := cfg.Request(model.KindSubtitles, "https://youtube.com/watch?v=c")
	if subs.Format != "" {
		t.Errorf("Expected subtitle request to leave format to the delegate, got %q", subs.Format)
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := Config{DataDir: "/var/lib/mgrab"}
	if got := cfg.HistoryPath(); got != filepath.Join("/var/lib/mgrab", "history.db") {
		t.Errorf("HistoryPath() = %q", got)
	}

	if got := (Config{}).HistoryPath(); got == "" {
		t.Error("Expected a fallback history path")
	}
}
