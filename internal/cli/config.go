package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration
type Config struct {
	DefaultProfile string             `yaml:"default_profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named hostmatch deployment.
type Profile struct {
	BaseURL string `yaml:"base_url"`
	// Fixture is used for local evaluation when no base URL is set.
	Fixture string `yaml:"fixture,omitempty"`
}

// Target is where a command runs: a remote server or a local fixture.
type Target struct {
	BaseURL string
	Fixture string
}

// Remote reports whether the target is a server.
func (t Target) Remote() bool { return t.BaseURL != "" }

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".hostmatch", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultProfile: "local",
				Profiles:       make(map[string]Profile),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveTarget picks where a command runs.
// Priority: command flags > environment variables > config file profile.
// A fixture flag forces local mode even when a profile names a server.
func ResolveTarget(profile, baseURLFlag, fixtureFlag string) (Target, error) {
	if fixtureFlag != "" {
		return Target{Fixture: fixtureFlag}, nil
	}
	if baseURLFlag != "" {
		return Target{BaseURL: baseURLFlag}, nil
	}
	if envURL := os.Getenv("HOSTMATCH_BASE_URL"); envURL != "" {
		return Target{BaseURL: envURL}, nil
	}
	if envFixture := os.Getenv("HOSTMATCH_FIXTURE"); envFixture != "" {
		return Target{Fixture: envFixture}, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return Target{}, err
	}
	if profile == "" {
		profile = cfg.DefaultProfile
	}
	p, ok := cfg.Profiles[profile]
	if !ok {
		return Target{}, fmt.Errorf("no --fixture or --base-url given and profile '%s' not found in config", profile)
	}
	if p.BaseURL == "" && p.Fixture == "" {
		return Target{}, fmt.Errorf("profile '%s' sets neither base_url nor fixture", profile)
	}
	return Target{BaseURL: p.BaseURL, Fixture: p.Fixture}, nil
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultProfile: "local",
		Profiles: map[string]Profile{
			"local": {
				BaseURL: "http://localhost:8080",
			},
			"fixture": {
				Fixture: "catalog.yaml",
			},
		},
	}
	return SaveConfig(cfg)
}
