// Package config loads funcqc settings from a YAML file and environment
// variables, and derives the config hash recorded on every snapshot.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings that shape a scan and its persistence.
type Config struct {
	// DBPath is the SQLite database file location.
	DBPath string `mapstructure:"db" json:"db"`
	// ProjectRoot anchors relative file paths in stored records.
	ProjectRoot string `mapstructure:"root" json:"root"`
	// Include and Exclude are glob patterns applied by scan collaborators.
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
	// VerifyWrites enables post-write row-count verification.
	VerifyWrites bool `mapstructure:"verify_writes" json:"verifyWrites"`
	// Verbose switches structured logging to debug level.
	Verbose bool `mapstructure:"verbose" json:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:      ".funcqc/funcqc.db",
		ProjectRoot: ".",
		Include:     []string{"**/*"},
		Exclude:     []string{"node_modules/**", "dist/**", ".git/**"},
	}
}

// Load reads configuration from cfgFile if given, otherwise searches the
// working directory and home directory for .funcqc.yaml. Environment
// variables prefixed FUNCQC_ override file values. A missing config file
// is not an error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	defaults := Default()
	v.SetDefault("db", defaults.DBPath)
	v.SetDefault("root", defaults.ProjectRoot)
	v.SetDefault("include", defaults.Include)
	v.SetDefault("exclude", defaults.Exclude)
	v.SetDefault("verify_writes", false)
	v.SetDefault("verbose", false)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".funcqc")
	}

	v.SetEnvPrefix("FUNCQC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing implicit config file falls back to defaults; an
		// explicit --config path that can't be read is an error, as is
		// any malformed file.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Hash derives the deterministic configuration fingerprint stored on each
// snapshot. Two scans with identical effective settings produce identical
// hashes regardless of where the settings came from.
func (c *Config) Hash() string {
	canonical, err := json.Marshal(c)
	if err != nil {
		// Config is a plain struct of strings, slices and bools; this
		// cannot fail for any reachable value.
		panic(fmt.Sprintf("marshal config: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
