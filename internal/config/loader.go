package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the config file name looked up in the working
	// directory.
	DefaultConfigFile = ".paramcrawl.yaml"

	// XDGConfigFile is the config file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"
)

// LoadConfigFile loads a YAML config file. A missing file yields
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, sc := range cf.Sites {
		sites[strings.ToLower(host)] = sc
	}
	cf.Sites = sites

	return &cf, nil
}

// FindConfigFile returns the config file to use, or "" if there is none.
// The lookup order is:
//  1. configPath, if given (it must exist)
//  2. .paramcrawl.yaml in the current directory
//  3. config.yaml in the XDG config directory
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
