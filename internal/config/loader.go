package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// DefaultFileNames are searched, in order, when no path is given.
var DefaultFileNames = []string{"wrf.yaml", "wrf.yml", "wrf.toml"}

// detectFormat picks the parser from the file extension.
func detectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and parses a configuration file. The format follows the
// extension. Environment variables in the form ${VAR} are expanded first.
func Load(path string) (cfg *Config, err error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}

	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", cerr)
		}
	}()

	return LoadFromReader(file, format)
}

// LoadFromReader parses configuration in the given format from r.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(content)))

	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &cfg, nil
}

// Find returns the first existing file among DefaultFileNames in dirs.
// It returns "" when none exists.
func Find(dirs ...string) string {
	for _, dir := range dirs {
		for _, name := range DefaultFileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// SearchDirs returns the directories Find looks in by default: the working
// directory, then ~/.config/wrf.
func SearchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "wrf"))
	}
	return dirs
}

// Resolve loads the configuration used by the service.
//
// An explicit path must exist. Without one the default locations are
// searched and, when nothing is found, Default() is used. Environment
// overrides are applied last. The returned path is "" when no file was read.
func Resolve(path string) (*Config, string, error) {
	if path == "" {
		path = Find(SearchDirs()...)
	}

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, path, fmt.Errorf("config file not found: %s", path)
			}
			return nil, path, err
		}
		cfg = loaded
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
