// Package config loads the loaderbuild YAML configuration: bundles to
// manage, compiler options, outputs and the optional daemon, journal and
// notification settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// Config is the root configuration document.
type Config struct {
	Bundles  []BundleConfig `yaml:"bundles"`
	Registry RegistryConfig `yaml:"registry"`
	Filter   FilterConfig   `yaml:"filter,omitempty"`
	Compiler CompilerConfig `yaml:"compiler"`
	Loader   LoaderConfig   `yaml:"loader"`
	Output   OutputConfig   `yaml:"output,omitempty"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Journal  JournalConfig  `yaml:"journal,omitempty"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BundleConfig describes one bundle under management.
type BundleConfig struct {
	Name           string `yaml:"name"`
	BuildDirectory string `yaml:"build_directory"`
	CSSProc        string `yaml:"cssproc,omitempty"`
}

// RegistryConfig points at the build registry manifest.
type RegistryConfig struct {
	Manifest string `yaml:"manifest"`
}

// FilterConfig narrows change notifications. An empty pattern accepts all files.
type FilterConfig struct {
	Pattern string `yaml:"pattern,omitempty"`
}

// CompilerConfig configures the external compiler. Cache is a pointer so an
// explicit false survives defaulting.
type CompilerConfig struct {
	Command      string   `yaml:"command"`
	Cache        *bool    `yaml:"cache,omitempty"`
	Coverage     bool     `yaml:"coverage,omitempty"`
	Lint         bool     `yaml:"lint,omitempty"`
	GlobalConfig bool     `yaml:"global_config,omitempty"`
	ExtraArgs    []string `yaml:"extra_args,omitempty"`
}

// LoaderConfig names the generated loader artifacts. Both templates accept
// {bundle}.
type LoaderConfig struct {
	ClientPath string `yaml:"client_path"`
	ModuleName string `yaml:"module_name"`
}

// OutputConfig adds optional mirrors for client loader data.
type OutputConfig struct {
	S3    *S3Config   `yaml:"s3,omitempty"`
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig controls retries of transient mirror write failures.
type RetryConfig struct {
	Backoff    string   `yaml:"backoff,omitempty"` // fixed|linear|exponential
	Initial    Duration `yaml:"initial,omitempty"`
	Max        Duration `yaml:"max,omitempty"`
	MaxRetries *int     `yaml:"max_retries,omitempty"`
}

// S3Config configures the object-store mirror.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// DaemonConfig configures the watch mode.
type DaemonConfig struct {
	Debounce       Duration `yaml:"debounce"`
	ResyncInterval Duration `yaml:"resync_interval,omitempty"`
	GitPoll        Duration `yaml:"git_poll,omitempty"`
	MetricsAddr    string   `yaml:"metrics_addr,omitempty"`
}

// JournalConfig enables the SQLite cycle journal when Path is set.
type JournalConfig struct {
	Path       string `yaml:"path,omitempty"`
	MaxHistory int    `yaml:"max_history,omitempty"`
}

// NotifyConfig enables NATS notifications when NATSURL is set.
type NotifyConfig struct {
	NATSURL  string `yaml:"nats_url,omitempty"`
	Subject  string `yaml:"subject,omitempty"`
	Stream   string `yaml:"stream,omitempty"`
	KVBucket string `yaml:"kv_bucket,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	if d == 0 {
		return "", nil
	}
	return time.Duration(d).String(), nil
}

// Load reads, normalizes, defaults and validates a configuration file.
// Variables from .env files and the environment are expanded first. Relative
// paths in the file are resolved against the file's directory.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to resolve config directory").Build()
	}
	cfg.ResolvePaths(base)
	return cfg, nil
}

// ResolvePaths makes bundle directories, the manifest and the journal
// absolute, relative to base.
func (c *Config) ResolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Bundles {
		c.Bundles[i].BuildDirectory = abs(c.Bundles[i].BuildDirectory)
	}
	c.Registry.Manifest = abs(c.Registry.Manifest)
	c.Journal.Path = abs(c.Journal.Path)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").Fatal().Build()
	}

	res := NormalizeConfig(&cfg)
	for _, w := range res.Warnings {
		warn(w)
	}
	ApplyDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	cache := true
	example := Config{
		Bundles: []BundleConfig{
			{Name: "photonews", BuildDirectory: "./bundles/photonews"},
		},
		Registry: RegistryConfig{Manifest: "./registry.json"},
		Compiler: CompilerConfig{Command: DefaultCompilerCommand, Cache: &cache},
		Loader:   LoaderConfig{ClientPath: DefaultClientPath, ModuleName: DefaultModuleName},
		Daemon: DaemonConfig{
			Debounce:       Duration(DefaultDebounce),
			ResyncInterval: Duration(time.Hour),
			MetricsAddr:    DefaultMetricsAddr,
		},
		Journal: JournalConfig{Path: "./loaderbuild.db", MaxHistory: DefaultMaxHistory},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}

// Bundle returns the bundle configuration named name.
func (c *Config) Bundle(name string) (BundleConfig, bool) {
	for _, b := range c.Bundles {
		if b.Name == name {
			return b, true
		}
	}
	return BundleConfig{}, false
}
