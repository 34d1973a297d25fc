package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rshade/uploadwiz/internal/logging"
)

// resolvedProjectDir holds the project directory resolved at startup.
var (
	resolvedProjectDir   string       //nolint:gochecknoglobals // Set once at startup, read by config loaders
	resolvedProjectDirMu sync.RWMutex //nolint:gochecknoglobals // Protects resolvedProjectDir
)

// SetResolvedProjectDir stores the resolved project directory.
func SetResolvedProjectDir(dir string) {
	resolvedProjectDirMu.Lock()
	defer resolvedProjectDirMu.Unlock()
	resolvedProjectDir = dir
}

// GetResolvedProjectDir returns the stored resolved project directory.
func GetResolvedProjectDir() string {
	resolvedProjectDirMu.RLock()
	defer resolvedProjectDirMu.RUnlock()
	return resolvedProjectDir
}

// ResolveProjectDir determines the project-local .uploadwiz directory.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. UPLOADWIZ_PROJECT_DIR env var
//  3. the nearest ancestor of startDir containing a .uploadwiz directory
//
// The global config directory never counts as a project. Returns an absolute
// path, or "" when no project is found. Nothing is created.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	return findProjectDir(ctx, startDir)
}

func findProjectDir(ctx context.Context, startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Str("start_dir", startDir).
			Msg("failed to resolve project search directory")
		return ""
	}

	global, _ := GetConfigDir()
	for {
		candidate := filepath.Join(dir, dirName)
		if candidate != global {
			if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// NewWithProjectDir loads the global config then shallow-merges the project
// config on top. Environment overrides win over both. With an empty
// projectDir it behaves like New.
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	if projectDir == "" {
		return New()
	}

	overlayPath := filepath.Join(projectDir, configFileName)
	if _, err := os.Stat(overlayPath); err != nil {
		return New()
	}

	cfg := Default()
	if path := cfg.ConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			_ = ShallowMergeYAML(cfg, path)
		}
	}
	if err := ShallowMergeYAML(cfg, overlayPath); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global config")
		return New()
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg
}

// toAbsProjectDir makes dir absolute and appends .uploadwiz unless it already
// ends with it.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == dirName {
		return abs
	}

	return filepath.Join(abs, dirName)
}
