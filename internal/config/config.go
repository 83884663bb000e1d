package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type BuildConfig struct {
	OutDir  string `mapstructure:"out_dir"`
	Workers int    `mapstructure:"workers"`
}

type LogConfig struct {
	Level slog.Level `mapstructure:"level"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

type Config struct {
	AddModuleNames              bool     `mapstructure:"add_module_names"`
	AddFunctionParentheses      bool     `mapstructure:"add_function_parentheses"`
	TocObjectEntriesShowParents string   `mapstructure:"toc_object_entries_show_parents"`
	ModIndexCommonPrefix        []string `mapstructure:"modindex_common_prefix"`
	Nitpicky                    bool     `mapstructure:"nitpicky"`
	PrimaryDomain               string   `mapstructure:"primary_domain"`
	SourceSuffix                []string `mapstructure:"source_suffix"`
	ExcludePatterns             []string `mapstructure:"exclude_patterns"`

	Build  BuildConfig  `mapstructure:"build"`
	Log    LogConfig    `mapstructure:"log"`
	Daemon DaemonConfig `mapstructure:"daemon"`
	Watch  WatchConfig  `mapstructure:"watch"`

	// Root is the absolute project directory the config was loaded for.
	Root string `mapstructure:"-"`
}

// DomainOptions returns the options the php domain reads.
func (c *Config) DomainOptions() php.Options {
	return php.Options{
		AddModuleNames:         c.AddModuleNames,
		AddFunctionParentheses: c.AddFunctionParentheses,
		TocShowParents:         c.TocObjectEntriesShowParents,
		ModIndexCommonPrefix:   c.ModIndexCommonPrefix,
		Nitpicky:               c.Nitpicky,
	}
}

// OutDir returns the absolute build output directory.
func (c *Config) OutDir() string {
	if filepath.IsAbs(c.Build.OutDir) {
		return c.Build.OutDir
	}
	return filepath.Join(c.Root, c.Build.OutDir)
}

// DBPath returns the path to the object inventory database.
func (c *Config) DBPath() string {
	return filepath.Join(c.OutDir(), "objects.db")
}

// EnvPath returns the path to the pickled build environment.
func (c *Config) EnvPath() string {
	return filepath.Join(c.OutDir(), "environment.json.zst")
}

// cacheBase returns the base cache directory for phpdomain.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/phpdomain as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "phpdomain")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "phpdomain")
	}
	return filepath.Join(os.TempDir(), "phpdomain")
}

// CASDir returns the path to the content-addressable storage directory.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// projectKey identifies a project root in per-project file names.
func projectKey(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(root)))[:12]
}

// LogPath returns the path to the log file of the daemon serving root.
func LogPath(root string) string {
	return filepath.Join(cacheBase(), "daemon-"+projectKey(root)+".log")
}

// SocketPath returns the unix socket of the daemon serving root.
func SocketPath(root string) string {
	name := projectKey(root) + ".sock"
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "phpdomain", name)
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "phpdomain", name)
}

func newViper(root string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("phpdomain")
	v.SetConfigType("toml")

	v.AddConfigPath(root)
	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "phpdomain"))
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "phpdomain"))
	}

	v.SetDefault("add_module_names", true)
	v.SetDefault("add_function_parentheses", true)
	v.SetDefault("toc_object_entries_show_parents", "domain")
	v.SetDefault("modindex_common_prefix", []string{})
	v.SetDefault("nitpicky", false)
	v.SetDefault("primary_domain", "php")
	v.SetDefault("source_suffix", []string{".rst", ".md"})
	v.SetDefault("exclude_patterns", []string{"_build"})
	v.SetDefault("build.out_dir", "_build")
	v.SetDefault("build.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("daemon.expiration_seconds", 600)
	v.SetDefault("watch.debounce_ms", 300)

	v.SetEnvPrefix("PHPDOMAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func stringToLevelHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(slog.Level(0)) || f.Kind() != reflect.String {
			return data, nil
		}
		var level slog.Level
		if err := level.UnmarshalText([]byte(data.(string))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", data, err)
		}
		return level, nil
	}
}

// Load reads phpdomain.toml for the project at root, falling back to
// defaults when no file exists. PHPDOMAIN_* environment variables override
// file values; list settings accept comma-separated strings there.
func Load(root string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	v := newViper(abs)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToLevelHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Root = abs
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.TocObjectEntriesShowParents {
	case "domain", "hide", "all":
	default:
		return fmt.Errorf("toc_object_entries_show_parents: unknown value %q", c.TocObjectEntriesShowParents)
	}
	for i, s := range c.SourceSuffix {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		c.SourceSuffix[i] = s
	}
	if c.Daemon.ExpirationSeconds <= 0 {
		c.Daemon.ExpirationSeconds = 600
	}
	return nil
}
