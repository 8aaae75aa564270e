package config

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"binnacle.dev/binnacle/internal/storage"
)

const (
	// FileName is the config file kept inside the .git directory
	FileName = ".binnacle_config"
	// BackendEnvVar overrides the configured backend
	BackendEnvVar = "BINNACLE_BACKEND"
	// DefaultBackend is used when nothing else selects one
	DefaultBackend = storage.TypeGitNotes
)

// Source records where the effective backend came from
type Source string

// Backend selection sources, highest precedence first
const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

// RepoConfig represents the repository configuration
type RepoConfig struct {
	Backend *string `json:"backend,omitempty"`
}

// Path returns the config file location for a repository root
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, ".git", FileName)
}

// GetRepoConfig reads the repository configuration
func GetRepoConfig(repoRoot string) (*RepoConfig, error) {
	data, err := os.ReadFile(Path(repoRoot))
	if err != nil {
		// Config doesn't exist - return default
		return &RepoConfig{}, nil
	}

	var config RepoConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse repo config: %w", err)
	}

	return &config, nil
}

// SetBackend persists the backend type for a repository
func SetBackend(repoRoot, backend string) error {
	kind := storage.ParseType(backend)
	if kind == "" {
		return fmt.Errorf("unknown storage backend %q", backend)
	}

	config, err := GetRepoConfig(repoRoot)
	if err != nil {
		config = &RepoConfig{}
	}
	config.Backend = &kind

	configJSON, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(Path(repoRoot), configJSON, 0600)
}

// ResolveBackend picks the backend type: flag, then BINNACLE_BACKEND, then the
// config file, then DefaultBackend. The result is normalised to a type tag.
func ResolveBackend(repoRoot, flagValue string) (string, Source, error) {
	if flagValue != "" {
		return normalise(flagValue, SourceFlag)
	}
	if env := os.Getenv(BackendEnvVar); env != "" {
		return normalise(env, SourceEnv)
	}

	config, err := GetRepoConfig(repoRoot)
	if err != nil {
		return "", "", err
	}
	if config.Backend != nil && *config.Backend != "" {
		return normalise(*config.Backend, SourceConfig)
	}

	return DefaultBackend, SourceDefault, nil
}

func normalise(value string, source Source) (string, Source, error) {
	kind := storage.ParseType(value)
	if kind == "" {
		return "", "", fmt.Errorf("unknown storage backend %q from %s (expected %s or %s)",
			value, source, storage.TypeGitNotes, storage.TypeOrphanBranch)
	}
	return kind, source, nil
}
