package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "init", "--out", path)
	if err != nil {
		t.Fatalf("init execute: %v", err)
	}
	if !strings.Contains(out, "Wrote sample config to") {
		t.Fatalf("unexpected output: %s", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "swagger2har configuration (YAML)") {
		t.Fatalf("unexpected config contents: %s", s)
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample yaml does not parse: %v", err)
	}
}

func TestInit_WritesTOMLSample(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "swagger2har.toml")

	if _, err := execute(t, "init", "--format", "toml", "--out", path); err != nil {
		t.Fatalf("init execute: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "swagger2har configuration (TOML)") {
		t.Fatalf("unexpected config contents: %s", data)
	}
	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample toml does not parse: %v", err)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}

	if _, err := execute(t, "init", "--out", path, "--force"); err != nil {
		t.Fatalf("init with --force: %v", err)
	}
}

func TestInit_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "init", "--format", "ini", "--out", filepath.Join(t.TempDir(), "x.ini"))
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
}
