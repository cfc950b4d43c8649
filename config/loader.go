package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "verifybib.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/verifybib"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	home   string
	cwd    string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// WithDirs overrides the home and working directories used for lookup.
func (l *Loader) WithDirs(home, cwd string) *Loader {
	l.home = home
	l.cwd = cwd
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/verifybib/config.yaml)
// 3. Project config (verifybib.yaml in current or parent directories)
// 4. Explicit config file (explicitPath, if not empty)
//
// Command-line flags are merged by the caller afterwards.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	// Load user config
	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := loadLayer(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config
	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if projectConfig, err := loadLayer(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	// An explicit file must load
	if explicitPath != "" {
		explicit, err := loadLayer(explicitPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded explicit config", slog.String("path", explicitPath))
		config.Merge(explicit)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// InitProjectConfig writes verifybib.yaml with defaults into the working
// directory. An existing file is kept unless force is set.
func (l *Loader) InitProjectConfig(force bool) (string, bool, error) {
	path := filepath.Join(l.workDir(), ProjectConfigFile)

	if _, err := os.Stat(path); err == nil && !force {
		return path, false, nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", false, err
	}

	l.logger.Info("Created project config", slog.String("path", path))
	return path, true, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func (l *Loader) workDir() string {
	if l.cwd != "" {
		return l.cwd
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// findProjectConfig searches for verifybib.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workDir()
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
