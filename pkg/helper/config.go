package helper

import (
	"os"
	"path/filepath"
)

// SystemConfigDir is the last directory searched for configuration files
const SystemConfigDir = "/etc/wshub"

// GetCfgPath returns the path to the configuration file.
//
// Lookup order: absolute paths as-is, then ./{filename}, ./configs/{filename},
// the user config dir ($XDG_CONFIG_HOME/wshub) and finally /etc/wshub.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	for _, dir := range candidateDirs() {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}

	return filepath.Join(SystemConfigDir, filename)
}

// UserConfigDir returns the per-user directory used by the CLI for
// credentials and cached session state
func UserConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".wshub")
	}
	return filepath.Join(dir, "wshub")
}

func candidateDirs() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil && wd != "" {
		dirs = append(dirs, wd, filepath.Join(wd, "configs"))
	}
	return append(dirs, UserConfigDir())
}
