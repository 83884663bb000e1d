package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "phpdomain")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "phpdomain")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	if !strings.Contains(got, "phpdomain") {
		t.Errorf("expected phpdomain in path, got %q", got)
	}
}

func TestSocketPath_PerProject(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")
	a := SocketPath("/src/one")
	b := SocketPath("/src/two")
	if a == b {
		t.Fatalf("distinct roots share socket %q", a)
	}
	if filepath.Dir(a) != "/run/test/phpdomain" {
		t.Errorf("unexpected socket dir %q", filepath.Dir(a))
	}
	if SocketPath("/src/one") != a {
		t.Error("socket path is not stable")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()

	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.AddModuleNames || !cfg.AddFunctionParentheses {
		t.Error("expected module names and parentheses on by default")
	}
	if cfg.TocObjectEntriesShowParents != "domain" {
		t.Errorf("toc parents = %q", cfg.TocObjectEntriesShowParents)
	}
	if !reflect.DeepEqual(cfg.SourceSuffix, []string{".rst", ".md"}) {
		t.Errorf("source suffix = %v", cfg.SourceSuffix)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.Log.Level)
	}
	if cfg.Daemon.ExpirationSeconds != 600 {
		t.Errorf("expiration = %d", cfg.Daemon.ExpirationSeconds)
	}
	if cfg.OutDir() != filepath.Join(root, "_build") {
		t.Errorf("out dir = %q", cfg.OutDir())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := t.TempDir()
	toml := `nitpicky = true
modindex_common_prefix = ["App\\"]

[log]
level = "debug"

[build]
out_dir = "out"
`
	if err := os.WriteFile(filepath.Join(root, "phpdomain.toml"), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHPDOMAIN_SOURCE_SUFFIX", "rst,txt")
	t.Setenv("PHPDOMAIN_BUILD_WORKERS", "3")

	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Nitpicky {
		t.Error("nitpicky not read from file")
	}
	if !reflect.DeepEqual(cfg.ModIndexCommonPrefix, []string{`App\`}) {
		t.Errorf("common prefix = %v", cfg.ModIndexCommonPrefix)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.Log.Level)
	}
	if !reflect.DeepEqual(cfg.SourceSuffix, []string{".rst", ".txt"}) {
		t.Errorf("source suffix = %v", cfg.SourceSuffix)
	}
	if cfg.Build.Workers != 3 {
		t.Errorf("workers = %d", cfg.Build.Workers)
	}
	if cfg.DBPath() != filepath.Join(root, "out", "objects.db") {
		t.Errorf("db path = %q", cfg.DBPath())
	}
	opts := cfg.DomainOptions()
	if !opts.Nitpicky || !opts.AddModuleNames {
		t.Errorf("domain options = %+v", opts)
	}
}

func TestLoad_RejectsUnknownTocMode(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PHPDOMAIN_TOC_OBJECT_ENTRIES_SHOW_PARENTS", "sometimes")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for unknown toc mode")
	}
}
