// Package config provides the configuration for paramcrawl: the flat Config
// populated from CLI flags, and the optional YAML file with per-site
// overrides.
package config
