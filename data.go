package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetDataDirectory returns the directory holding config.yaml and hosts/.
// SNIGATE_DATA_DIR takes precedence over the per-user default.
func GetDataDirectory() string {
	if dir := os.Getenv("SNIGATE_DATA_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "snigate")
		}
		return "."
	}
	home := os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".snigate")
	}
	return "."
}
