package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar = "APP_ENV"

	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

var environmentAliases = map[string]string{
	"dev":   EnvironmentDevelopment,
	"prod":  EnvironmentProduction,
	"stage": EnvironmentStaging,
	"stag":  EnvironmentStaging,
}

// AppEnvironment reads APP_ENV, folding common aliases. Defaults to development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// ResolveConfigPath swaps the default config file for config.<env>.yml next to
// it when such a file exists. Explicitly chosen paths are left alone.
func ResolveConfigPath(path, defaultPath string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}

	env := AppEnvironment()
	if env == EnvironmentDevelopment {
		return path
	}

	ext := filepath.Ext(defaultPath)
	candidate := strings.TrimSuffix(defaultPath, ext) + "." + env + ext
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
