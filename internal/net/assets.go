package net

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultAssetsDir is the controller app build directory.
const DefaultAssetsDir = "dist"

// ResolveAssetsDir finds the controller app directory. An absolute dir is used
// as is; a relative one is looked up next to the working directory first and
// then next to the executable.
func ResolveAssetsDir(dir string) (string, error) {
	if dir == "" {
		dir = DefaultAssetsDir
	}
	if filepath.IsAbs(dir) {
		if isDir(dir) {
			return dir, nil
		}
		return "", fmt.Errorf("assets directory %s not found", dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve assets: %w", err)
	}
	if resolved, ok := resolveAssetsDirFrom(cwd, dir); ok {
		return resolved, nil
	}
	exePath, err := os.Executable()
	if err == nil {
		if resolved, ok := resolveAssetsDirFrom(filepath.Dir(exePath), dir); ok {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("assets directory %s not found", dir)
}

func resolveAssetsDirFrom(base, dir string) (string, bool) {
	candidates := []string{
		filepath.Join(base, dir),
		filepath.Join(base, "..", dir),
	}
	for _, candidate := range candidates {
		if !isDir(candidate) {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
