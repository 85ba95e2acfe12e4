package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Binaries the app delegates real work to.
const (
	FFmpegCommand = "ffmpeg"
)

// Package managers probed on Linux, in order.
var packageManagers = []string{"apt", "yum", "dnf", "pacman", "zypper"}

// EnsureDir creates the directory if it does not exist yet.
func EnsureDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// HomeDownloadsDir returns the user's standard Downloads directory.
func HomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}

// HasFFmpeg reports whether ffmpeg is reachable on PATH. The delegate needs
// it for audio extraction and container muxing.
func HasFFmpeg() bool {
	_, err := exec.LookPath(FFmpegCommand)
	return err == nil
}

// DetectPackageManager returns the first known package manager found on PATH,
// or empty if none. Used only to point the user at the right install command;
// the app never installs anything itself.
func DetectPackageManager() string {
	for _, pm := range packageManagers {
		if _, err := exec.LookPath(pm); err == nil {
			return pm
		}
	}
	return ""
}

// FFmpegInstallHint builds a one-line install suggestion for the detected
// package manager.
func FFmpegInstallHint() string {
	switch DetectPackageManager() {
	case "apt":
		return "sudo apt install -y ffmpeg"
	case "yum":
		return "sudo yum install -y ffmpeg"
	case "dnf":
		return "sudo dnf install -y ffmpeg"
	case "pacman":
		return "sudo pacman -Sy --noconfirm ffmpeg"
	case "zypper":
		return "sudo zypper install -y ffmpeg"
	}
	return "see https://ffmpeg.org/download.html"
}
