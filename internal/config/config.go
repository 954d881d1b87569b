// Package config loads and resolves cqs project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete cqs configuration for a project.
type Config struct {
	Version    int               `yaml:"version" json:"version"`
	Paths      PathsConfig       `yaml:"paths" json:"paths"`
	Search     SearchConfig      `yaml:"search" json:"search"`
	Gather     GatherConfig      `yaml:"gather" json:"gather"`
	Store      StoreConfig       `yaml:"store" json:"store"`
	References []ReferenceConfig `yaml:"references" json:"references"`
}

// ReferenceConfig names one pre-built read-only reference index to search
// alongside the project index.
type ReferenceConfig struct {
	Name   string  `yaml:"name" json:"name"`
	Path   string  `yaml:"path" json:"path"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// PathsConfig controls which files are considered for indexing.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig holds hybrid-search defaults.
type SearchConfig struct {
	NameBoost   float64 `yaml:"name_boost" json:"name_boost"`
	RRFConstant int     `yaml:"rrf_constant" json:"rrf_constant"`
	EnableRRF   bool    `yaml:"enable_rrf" json:"enable_rrf"`
	NoteWeight  float64 `yaml:"note_weight" json:"note_weight"`
}

// GatherConfig holds gather/BFS defaults.
type GatherConfig struct {
	SeedLimit       int     `yaml:"seed_limit" json:"seed_limit"`
	SeedThreshold   float64 `yaml:"seed_threshold" json:"seed_threshold"`
	ExpandDepth     int     `yaml:"expand_depth" json:"expand_depth"`
	DecayFactor     float64 `yaml:"decay_factor" json:"decay_factor"`
	MaxExpandedNode int     `yaml:"max_expanded_nodes" json:"max_expanded_nodes"`
}

// StoreConfig controls where persistent state lives.
type StoreConfig struct {
	DataDir     string `yaml:"data_dir" json:"data_dir"`
	EmbedModel  string `yaml:"embed_model" json:"embed_model"`
	Dimensions  int    `yaml:"dimensions" json:"dimensions"`
}

// Default returns the baseline configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: []string{".git/**", "node_modules/**", "vendor/**", ".cqs/**"},
		},
		Search: SearchConfig{
			NameBoost:   0.0,
			RRFConstant: 60,
			EnableRRF:   true,
			NoteWeight:  0.3,
		},
		Gather: GatherConfig{
			SeedLimit:       10,
			SeedThreshold:   0.0,
			ExpandDepth:     1,
			DecayFactor:     0.8,
			MaxExpandedNode: 200,
		},
		Store: StoreConfig{
			DataDir:    ".cqs",
			EmbedModel: "static-768",
			Dimensions: 768,
		},
	}
}

// Load reads the project config file, falling back to Default() when it
// does not exist, then applies CQS_-prefixed environment overrides.
func Load(projectRoot string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(projectRoot, ".cqs", "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, uerr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("CQS_NAME_BOOST"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.NameBoost = f
		}
	}
	if v, ok := os.LookupEnv("CQS_RRF_CONSTANT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.RRFConstant = n
		}
	}
	if v, ok := os.LookupEnv("CQS_DATA_DIR"); ok && v != "" {
		cfg.Store.DataDir = v
	}
}

// markerFiles are checked, in order, when walking upward to find a project
// root.
var markerFiles = []string{".git", "go.mod", "package.json", "Cargo.toml", ".cqs"}

// FindProjectRoot walks upward from start looking for a marker file,
// returning start itself if no marker is found.
func FindProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	for {
		for _, marker := range markerFiles {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// NormalizeOrigin forward-slash normalizes a file path the way chunk
// origins are stored.
func NormalizeOrigin(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "\\", "/")
}
