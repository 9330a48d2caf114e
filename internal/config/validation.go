package config

import (
	"fmt"

	"git.home.luguber.info/inful/loaderbuild/internal/foundation/errors"
)

// ValidateConfig checks a normalized, defaulted configuration.
func ValidateConfig(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateBundles,
		validateFilter,
		validateOutput,
		validateDaemon,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateBundles(cfg *Config) error {
	if len(cfg.Bundles) == 0 {
		return errors.ConfigError("at least one bundle must be configured").Build()
	}
	seen := make(map[string]bool, len(cfg.Bundles))
	for i, b := range cfg.Bundles {
		field := fmt.Sprintf("bundles[%d]", i)
		if b.Name == "" {
			return errors.ConfigError("bundle name is required").WithContext("field", field+".name").Build()
		}
		if seen[b.Name] {
			return errors.ConfigError("duplicate bundle name").WithContext("bundle", b.Name).Build()
		}
		seen[b.Name] = true
		if b.BuildDirectory == "" {
			return errors.ConfigError("bundle build_directory is required").
				WithContext("bundle", b.Name).
				WithContext("field", field+".build_directory").Build()
		}
	}
	return nil
}

func validateFilter(cfg *Config) error {
	if cfg.Filter.Pattern == "" {
		return nil
	}
	if _, err := cfg.FilterPredicate(); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid filter.pattern").UserAction().Build()
	}
	return nil
}

func validateOutput(cfg *Config) error {
	s3 := cfg.Output.S3
	if s3 == nil {
		return nil
	}
	switch {
	case s3.Endpoint == "":
		return errors.ConfigError("output.s3.endpoint is required").Build()
	case s3.Bucket == "":
		return errors.ConfigError("output.s3.bucket is required").Build()
	}
	return nil
}

func validateDaemon(cfg *Config) error {
	if cfg.Daemon.ResyncInterval < 0 {
		return errors.ConfigError("daemon.resync_interval must not be negative").Build()
	}
	if cfg.Daemon.GitPoll < 0 {
		return errors.ConfigError("daemon.git_poll must not be negative").Build()
	}
	return nil
}
