package config

import "time"

// Defaults applied to omitted settings.
const (
	DefaultCompilerCommand = "shifter"
	DefaultClientPath      = "loader-{bundle}.json"
	DefaultModuleName      = "loader-{bundle}"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultMetricsAddr     = ":9464"
	DefaultSubject         = "loaderbuild.cycles"
	DefaultStream          = "LOADERBUILD"
	DefaultMaxHistory      = 100
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

type compilerDefaults struct{}

func (compilerDefaults) Domain() string { return "compiler" }

func (compilerDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Compiler.Command == "" {
		cfg.Compiler.Command = DefaultCompilerCommand
	}
	if cfg.Compiler.Cache == nil {
		cache := true
		cfg.Compiler.Cache = &cache
	}
}

type loaderDefaults struct{}

func (loaderDefaults) Domain() string { return "loader" }

func (loaderDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Loader.ClientPath == "" {
		cfg.Loader.ClientPath = DefaultClientPath
	}
	if cfg.Loader.ModuleName == "" {
		cfg.Loader.ModuleName = DefaultModuleName
	}
}

type daemonDefaults struct{}

func (daemonDefaults) Domain() string { return "daemon" }

func (daemonDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Daemon.Debounce <= 0 {
		cfg.Daemon.Debounce = Duration(DefaultDebounce)
	}
	if cfg.Journal.MaxHistory <= 0 {
		cfg.Journal.MaxHistory = DefaultMaxHistory
	}
}

type notifyDefaults struct{}

func (notifyDefaults) Domain() string { return "notify" }

func (notifyDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultSubject
	}
	if cfg.Notify.Stream == "" {
		cfg.Notify.Stream = DefaultStream
	}
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

// DefaultAppliers returns the appliers ApplyDefaults runs, in order.
func DefaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		compilerDefaults{},
		loaderDefaults{},
		daemonDefaults{},
		notifyDefaults{},
		loggingDefaults{},
	}
}

// ApplyDefaults fills every omitted setting.
func ApplyDefaults(cfg *Config) {
	for _, a := range DefaultAppliers() {
		a.ApplyDefaults(cfg)
	}
}
