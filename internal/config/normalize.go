package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalizer maps case-insensitive, trimmed strings onto enum values.
type normalizer[T comparable] struct {
	values map[string]T
}

func newNormalizer[T comparable](values map[string]T) *normalizer[T] {
	n := &normalizer[T]{values: make(map[string]T, len(values))}
	for k, v := range values {
		n.values[cleanKey(k)] = v
	}
	return n
}

func (n *normalizer[T]) normalize(raw string) (T, bool) {
	v, ok := n.values[cleanKey(raw)]
	return v, ok
}

func cleanKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizationResult captures adjustments made by NormalizeConfig.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig canonicalizes enumerations and paths before defaults are
// applied. Unknown enumeration values are cleared so defaults replace them.
func NormalizeConfig(c *Config) *NormalizationResult {
	res := &NormalizationResult{}
	normalizeLogging(&c.Logging, res)
	for i := range c.Bundles {
		b := &c.Bundles[i]
		b.Name = strings.TrimSpace(b.Name)
		if b.BuildDirectory != "" {
			cleaned := filepath.Clean(b.BuildDirectory)
			if cleaned != b.BuildDirectory {
				res.Warnings = append(res.Warnings, warnChanged(fmt.Sprintf("bundles[%d].build_directory", i), b.BuildDirectory, cleaned))
				b.BuildDirectory = cleaned
			}
		}
	}
	c.Compiler.Command = strings.TrimSpace(c.Compiler.Command)
	return res
}

func normalizeLogging(l *LoggingConfig, res *NormalizationResult) {
	if lvl, ok := logLevelNormalizer.normalize(string(l.Level)); ok {
		if l.Level != lvl {
			res.Warnings = append(res.Warnings, warnChanged("logging.level", l.Level, lvl))
			l.Level = lvl
		}
	} else if strings.TrimSpace(string(l.Level)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("logging.level", string(l.Level), string(LogLevelInfo)))
		l.Level = ""
	}
	if f, ok := logFormatNormalizer.normalize(string(l.Format)); ok {
		if l.Format != f {
			res.Warnings = append(res.Warnings, warnChanged("logging.format", l.Format, f))
			l.Format = f
		}
	} else if strings.TrimSpace(string(l.Format)) != "" {
		res.Warnings = append(res.Warnings, warnUnknown("logging.format", string(l.Format), string(LogFormatText)))
		l.Format = ""
	}
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}

func warnUnknown(field, value, def string) string {
	return fmt.Sprintf("unknown %s '%s', defaulting to %s", field, value, def)
}
