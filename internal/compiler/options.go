package compiler

// Options is the normalized option set handed to the compiler. The zero value
// is not the default; use DefaultOptions.
type Options struct {
	// Cache lets the compiler reuse previous outputs.
	Cache bool
	// Coverage produces coverage-instrumented builds.
	Coverage bool
	// Lint runs the linter on sources before compiling.
	Lint bool
	// GlobalConfig lets the compiler read its global configuration file.
	GlobalConfig bool
	// CSSProc is the CSS post-processing target. Empty disables it.
	CSSProc string
	// ExtraArgs are appended after the generated flags.
	ExtraArgs []string
}

// DefaultOptions caches, and skips coverage, lint and global configuration.
func DefaultOptions() Options {
	return Options{Cache: true}
}

// Args renders the flag list for the options.
func (o Options) Args() []string {
	var args []string
	if !o.GlobalConfig {
		args = append(args, "--no-global-config")
	}
	if !o.Coverage {
		args = append(args, "--no-coverage")
	}
	if !o.Lint {
		args = append(args, "--no-lint")
	}
	if o.CSSProc != "" {
		args = append(args, "--cssproc", o.CSSProc)
	}
	return append(args, o.ExtraArgs...)
}

// Invocation is what a Compiler receives for one batch of targets.
type Invocation struct {
	BuildDir string
	Cache    bool
	Args     []string
}
