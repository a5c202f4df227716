// Package config loads tileref settings from defaults, an optional
// tileref.yaml, TILEREF_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/odvcencio/tileref/pkg/rewrite"
)

const (
	FileName  = "tileref.yaml"
	EnvPrefix = "TILEREF_"

	DefaultWorkers   = 4
	DefaultLogFormat = "text"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	TargetType     string   `koanf:"target_type" json:"target_type"`
	SentinelMember string   `koanf:"sentinel_member" json:"sentinel_member"`
	ReviewMarker   string   `koanf:"review_marker" json:"review_marker"`
	Workers        int      `koanf:"workers" json:"workers"`
	DryRun         bool     `koanf:"dry_run" json:"dry_run"`
	ExternalTypes  []string `koanf:"external_types" json:"external_types,omitempty"`
	Exclude        []string `koanf:"exclude" json:"exclude,omitempty"`
	Verbose        bool     `koanf:"verbose" json:"verbose"`
	LogFormat      string   `koanf:"log_format" json:"log_format"`
	Progress       bool     `koanf:"progress" json:"progress"`
	JSON           bool     `koanf:"json" json:"json"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-" json:"file,omitempty"`
}

func defaults() map[string]any {
	return map[string]any{
		"target_type":     rewrite.DefaultTargetType,
		"sentinel_member": rewrite.DefaultSentinelMember,
		"review_marker":   rewrite.DefaultReviewMarker,
		"workers":         DefaultWorkers,
		"dry_run":         false,
		"external_types":  []string{},
		"exclude":         []string{},
		"verbose":         false,
		"log_format":      DefaultLogFormat,
		"progress":        true,
		"json":            false,
	}
}

// RegisterFlags declares the flags Load reads. Flag names are the config
// keys with dashes instead of underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default: "+FileName+" next to the project, then in the working directory)")
	fs.String("target-type", rewrite.DefaultTargetType, "fully qualified name of the type to rewrite")
	fs.String("sentinel-member", rewrite.DefaultSentinelMember, "static member used in place of null")
	fs.String("review-marker", rewrite.DefaultReviewMarker, "comment attached to code flagged for review")
	fs.IntP("workers", "j", DefaultWorkers, "number of files rewritten in parallel")
	fs.BoolP("dry-run", "n", false, "print unified diffs instead of writing files")
	fs.StringSlice("external-types", nil, "types defined outside the project, fully qualified")
	fs.StringSlice("exclude", nil, "extra ignore patterns, gitignore syntax")
	fs.BoolP("verbose", "v", false, "debug logging")
	fs.String("log-format", DefaultLogFormat, "log format (text|json)")
	fs.Bool("progress", true, "show progress on stderr")
	fs.Bool("json", false, "print the report as JSON")
}

// Load builds the configuration. explicit names a config file that must
// exist; otherwise the first of dirs holding FileName is used, if any. Only
// flags the user set override the lower layers.
func Load(explicit string, dirs []string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	cfgFile, err := findConfigFile(explicit, dirs)
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	}

	// TILEREF_DRY_RUN -> dry_run; list keys take comma-separated values.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if listKeys[key] {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = cfgFile
	cfg.ExternalTypes = trimList(cfg.ExternalTypes)
	cfg.Exclude = trimList(cfg.Exclude)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string, dirs []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

var listKeys = map[string]bool{"external_types": true, "exclude": true}

func trimList(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the settings Load cannot express as types.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.LogFormat)
	}
	if _, err := rewrite.New(c.Rewrite()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Rewrite returns the rewriter settings.
func (c *Config) Rewrite() rewrite.Config {
	return rewrite.Config{
		TargetType:     c.TargetType,
		SentinelMember: c.SentinelMember,
		ReviewMarker:   c.ReviewMarker,
	}
}

// Logger returns a logger writing to w in the configured format. Verbose
// enables debug output; otherwise only warnings and errors are shown.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if c.Verbose {
		opts.Level = slog.LevelDebug
	}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
