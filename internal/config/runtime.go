package config

import (
	"strings"

	"git.home.luguber.info/inful/loaderbuild/internal/compiler"
	"git.home.luguber.info/inful/loaderbuild/internal/filter"
	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/retry"
	"git.home.luguber.info/inful/loaderbuild/internal/writer"
)

// Expand substitutes {bundle} in a loader template.
func Expand(tmpl, bundle string) string {
	return strings.ReplaceAll(tmpl, "{bundle}", bundle)
}

// Model converts the bundle configuration.
func (b BundleConfig) Model() *models.Bundle {
	return &models.Bundle{Name: b.Name, BuildDirectory: b.BuildDirectory, CSSProc: b.CSSProc}
}

// BundleModels converts every configured bundle, in configuration order.
func (c *Config) BundleModels() []*models.Bundle {
	out := make([]*models.Bundle, 0, len(c.Bundles))
	for _, b := range c.Bundles {
		out = append(out, b.Model())
	}
	return out
}

// CompilerOptions converts the compiler section.
func (c *Config) CompilerOptions() compiler.Options {
	opts := compiler.DefaultOptions()
	if c.Compiler.Cache != nil {
		opts.Cache = *c.Compiler.Cache
	}
	opts.Coverage = c.Compiler.Coverage
	opts.Lint = c.Compiler.Lint
	opts.GlobalConfig = c.Compiler.GlobalConfig
	opts.ExtraArgs = c.Compiler.ExtraArgs
	return opts
}

// FilterPredicate compiles filter.pattern.
func (c *Config) FilterPredicate() (filter.Predicate, error) {
	return filter.Regexp(c.Filter.Pattern)
}

// ClientPath returns the client loader data path for a bundle.
func (c *Config) ClientPath(b *models.Bundle) string {
	return Expand(c.Loader.ClientPath, b.Name)
}

// ModuleName returns the loader meta-module name for a bundle.
func (c *Config) ModuleName(b *models.Bundle) string {
	return Expand(c.Loader.ModuleName, b.Name)
}

// S3 converts the object-store mirror settings; ok is false when none is configured.
func (c *Config) S3() (writer.S3Config, bool) {
	s := c.Output.S3
	if s == nil {
		return writer.S3Config{}, false
	}
	return writer.S3Config{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		UseSSL:    s.UseSSL,
		Prefix:    s.Prefix,
	}, true
}

// RetryPolicy converts output.retry; unset fields keep the retry defaults.
func (c *Config) RetryPolicy() retry.Policy {
	r := c.Output.Retry
	maxRetries := -1
	if r.MaxRetries != nil {
		maxRetries = *r.MaxRetries
	}
	return retry.NewPolicy(retry.Mode(strings.ToLower(strings.TrimSpace(r.Backoff))), r.Initial.Std(), r.Max.Std(), maxRetries)
}

// Locate returns the build directory of a configured bundle.
func (c *Config) Locate(bundleName string) (string, bool) {
	b, ok := c.Bundle(bundleName)
	if !ok {
		return "", false
	}
	return b.BuildDirectory, true
}
