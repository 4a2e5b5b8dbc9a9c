package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultStateDir = "~/.socialsim"

// ExpandHomePath replaces a leading "~" with the user's home directory.
func ExpandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func ResolveStateDir(stateDir string) string {
	stateDir = strings.TrimSpace(stateDir)
	if stateDir == "" {
		stateDir = defaultStateDir
	}
	return filepath.Clean(ExpandHomePath(stateDir))
}

// ResolveStateChildDir returns name (or fallback when name is blank) under the
// state dir. Absolute or home-relative names are used as-is.
func ResolveStateChildDir(stateDir string, name string, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	expanded := ExpandHomePath(name)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded)
	}
	return filepath.Join(ResolveStateDir(stateDir), expanded)
}

func ResolveStateFile(stateDir string, filename string) string {
	return ResolveStateChildDir(stateDir, filename, filename)
}
