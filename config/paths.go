package config

import (
	"os"
	"path/filepath"
)

const (
	homeEnv     = "FOCUSFLOW_HOME"
	homeDirName = ".focusflow"
)

// HomePath is $FOCUSFLOW_HOME, or ~/.focusflow when unset.
func HomePath() string {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir
	}
	base, err := os.UserHomeDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, homeDirName)
}

func ConfigPath() string { return filepath.Join(HomePath(), "config.yaml") }

func DotenvPath() string { return filepath.Join(HomePath(), ".env") }
