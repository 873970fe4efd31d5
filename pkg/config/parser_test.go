package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "container.conf")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestParseContainerFileInlineFields(t *testing.T) {
	path := writeTemp(t, `
name: web-1
image: ubuntu:22.04
cpu_limit: 200
memory_limit: 512
privileged: true
environment: FOO=bar,BAZ=qux
mounts: /data:/mnt/data
network: bridge=lxcbr0
`)

	cfg, err := ParseContainerFile(path)
	if err != nil {
		t.Fatalf("ParseContainerFile: %v", err)
	}

	if cfg.Name != "web-1" || cfg.Image != "ubuntu:22.04" {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.CPULimit != 200 || cfg.MemLimit != 512 || !cfg.Privileged {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.Environment != "FOO=bar,BAZ=qux" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
}

// TestParseContainerFileNestedMappingResolvesEmpty documents and pins the
// preserved quirk (spec.md §9): a nested mapping's parent key evaluates to
// its own (empty) value, not a flattened form of its children.
func TestParseContainerFileNestedMappingResolvesEmpty(t *testing.T) {
	path := writeTemp(t, `
name: web-1
environment:
  FOO: bar
  BAZ: qux
`)

	cfg, err := ParseContainerFile(path)
	if err != nil {
		t.Fatalf("ParseContainerFile: %v", err)
	}
	if cfg.Environment != "" {
		t.Fatalf("environment = %q, want empty string (nested-mapping quirk)", cfg.Environment)
	}
}

func TestParseContainerFileRequiresName(t *testing.T) {
	path := writeTemp(t, "image: ubuntu:22.04\n")

	if _, err := ParseContainerFile(path); err == nil {
		t.Fatal("expected error for a config file with no name field")
	}
}

func TestParseContainerFileSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeTemp(t, "\n# a comment\nname: web-1\n\n# trailing comment\n")

	cfg, err := ParseContainerFile(path)
	if err != nil {
		t.Fatalf("ParseContainerFile: %v", err)
	}
	if cfg.Name != "web-1" {
		t.Fatalf("name = %q", cfg.Name)
	}
}
