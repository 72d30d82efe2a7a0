package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	o := cfg.Optimizer
	if !o.BetaReduction || !o.BlockPipeline || !o.TryFolding || !o.ConstantFolding {
		t.Errorf("expected all rule families enabled, got %+v", o)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected level info, got %q", cfg.Log.Level)
	}
	if n := len(cfg.Options()); n != 4 {
		t.Errorf("expected 4 options, got %d", n)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[optimizer]
try_folding = false

[log]
level = "debug"
development = true

[purity]
members = ["String.Length", "Math.*"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Optimizer.TryFolding {
		t.Errorf("expected try_folding false")
	}
	if !cfg.Optimizer.BetaReduction {
		t.Errorf("expected unset keys to keep their defaults")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Errorf("expected debug development logging, got %+v", cfg.Log)
	}
	if got := strings.Join(cfg.Purity.Members, ","); got != "String.Length,Math.*" {
		t.Errorf("expected purity members, got %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "[optimizer]\nbeta_reduction = true\n")
	t.Setenv(EnvBetaReduction, "false")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Optimizer.BetaReduction {
		t.Errorf("expected %s to override the file", EnvBetaReduction)
	}
	if !cfg.Optimizer.ConstantFolding {
		t.Errorf("expected unset variables to leave defaults alone")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Log.Level)
	}
}

func TestEnvReloadedOnEveryLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "[log]\nlevel = \"info\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected level info, got %q", cfg.Log.Level)
	}

	// 第一次 Load 之后才设置的变量也要生效
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvTryFolding, "false")
	cfg, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected level error, got %q", cfg.Log.Level)
	}
	if cfg.Optimizer.TryFolding {
		t.Errorf("expected %s to override the default", EnvTryFolding)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
	bad := writeFile(t, dir, "[optimizer\n")
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Purity.Members = []string{"String.Length", "Length", "String.Length", "Math."}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if n := len(multierr.Errors(err)); n != 4 {
		t.Errorf("expected 4 errors, got %d: %v", n, err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Optimizer.BlockPipeline = false
	cfg.Purity.Members = []string{"Char.IsDigit"}

	path := filepath.Join(dir, ConfigFileName)
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Optimizer != cfg.Optimizer || len(got.Purity.Members) != 1 || got.Purity.Members[0] != "Char.IsDigit" {
		t.Errorf("expected %+v, got %+v", cfg, got)
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	want := writeFile(t, root, "")

	got := FindConfigFile(nested)
	wantAbs, _ := filepath.Abs(want)
	if got != wantAbs {
		t.Errorf("expected %q, got %q", wantAbs, got)
	}
}
