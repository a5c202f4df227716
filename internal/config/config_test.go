package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"

	"github.com/odvcencio/tileref/pkg/rewrite"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	file := filepath.Join(dir, FileName)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", []string{t.TempDir()}, newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TargetType != rewrite.DefaultTargetType || cfg.SentinelMember != rewrite.DefaultSentinelMember {
		t.Fatalf("rewrite defaults = %+v", cfg.Rewrite())
	}
	if cfg.Workers != DefaultWorkers || cfg.LogFormat != "text" || !cfg.Progress || cfg.DryRun || cfg.JSON {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.File != "" {
		t.Fatalf("no config file expected, got %s", cfg.File)
	}
}

func TestLoadLayers(t *testing.T) {
	manifestDir := t.TempDir()
	cwd := t.TempDir()
	writeConfig(t, cwd, "workers: 2\n")
	file := writeConfig(t, manifestDir, `target_type: Game.Cell
sentinel_member: Empty
workers: 6
external_types:
  - Game.Cell
  - Game.Chunk
log_format: json
`)

	t.Setenv("TILEREF_WORKERS", "8")
	t.Setenv("TILEREF_EXCLUDE", "Generated/,Legacy/")
	t.Setenv("TILEREF_DRY_RUN", "true")

	cfg, err := Load("", []string{manifestDir, cwd}, newFlags(t, "--workers=3", "--json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.File != file {
		t.Fatalf("file = %s, want the one next to the manifest", cfg.File)
	}
	if cfg.TargetType != "Game.Cell" || cfg.SentinelMember != "Empty" || cfg.LogFormat != "json" {
		t.Fatalf("file layer = %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.ExternalTypes, []string{"Game.Cell", "Game.Chunk"}) {
		t.Fatalf("external types = %v", cfg.ExternalTypes)
	}
	if !cfg.DryRun || !reflect.DeepEqual(cfg.Exclude, []string{"Generated/", "Legacy/"}) {
		t.Fatalf("env layer = %+v", cfg)
	}
	if cfg.Workers != 3 || !cfg.JSON {
		t.Fatalf("flag layer = %+v", cfg)
	}
}

func TestEnvListsSplitOnCommas(t *testing.T) {
	t.Setenv("TILEREF_EXTERNAL_TYPES", "Terraria.Tile, Terraria.Chest,")
	t.Setenv("TILEREF_EXCLUDE", "Generated/")

	cfg, err := Load("", []string{t.TempDir()}, newFlags(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg.ExternalTypes, []string{"Terraria.Tile", "Terraria.Chest"}) {
		t.Fatalf("external types = %q", cfg.ExternalTypes)
	}
	if !reflect.DeepEqual(cfg.Exclude, []string{"Generated/"}) {
		t.Fatalf("exclude = %q", cfg.Exclude)
	}
}

func TestUnsetFlagsKeepLowerLayers(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers: 7\nprogress: false\n")
	cfg, err := Load("", []string{dir}, newFlags(t, "--verbose"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 7 || cfg.Progress {
		t.Fatalf("flag defaults overrode the file: %+v", cfg)
	}
	if !cfg.Verbose {
		t.Fatal("--verbose should be set")
	}
}

func TestExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(file, []byte("sentinel_member: Blank\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "sentinel_member: Ignored\n")

	cfg, err := Load(file, []string{dir}, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SentinelMember != "Blank" {
		t.Fatalf("sentinel = %s", cfg.SentinelMember)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml"), nil, nil); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing explicit file: err = %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		args []string
	}{
		{name: "zero workers", args: []string{"--workers=0"}},
		{name: "unknown log format", yaml: "log_format: xml\n"},
		{name: "bad target", args: []string{"--target-type=Terraria..Tile"}},
		{name: "bad sentinel", yaml: "sentinel_member: not valid\n"},
		{name: "marker closes comment", args: []string{"--review-marker=done */"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.yaml != "" {
				writeConfig(t, dir, tt.yaml)
			}
			_, err := Load("", []string{dir}, newFlags(t, tt.args...))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	cfg := &Config{LogFormat: "json"}
	if cfg.Logger(os.Stderr).Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug should be off without verbose")
	}
	cfg.Verbose = true
	if !cfg.Logger(os.Stderr).Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug should be on with verbose")
	}
}
