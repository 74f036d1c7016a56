package hbs

import (
	"maps"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/vm"
)

// Option configures a compilation or a render. Compile options are ignored
// by Render and render options are ignored by Compile.
type Option func(*config)

type config struct {
	// compile
	compile  compiler.Options
	filename string

	// render
	data        map[string]any
	helpers     map[string]any
	partials    map[string]any
	decorators  map[string]any
	blockParams []any
	depths      []any
	policy      vm.AccessPolicy

	allowHelperMissing bool
	logger             *zerolog.Logger
	observer           vm.Observer
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		helpers:    map[string]any{},
		partials:   map[string]any{},
		decorators: map[string]any{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithFilename sets the template name used in error messages.
func WithFilename(filename string) Option {
	return func(cfg *config) {
		cfg.filename = filename
	}
}

// WithCompileOptions replaces all compile options at once.
func WithCompileOptions(opts compiler.Options) Option {
	return func(cfg *config) {
		cfg.compile = *opts.Clone()
	}
}

// WithStrict makes lookups of missing values a render error.
func WithStrict(strict bool) Option {
	return func(cfg *config) {
		cfg.compile.Strict = strict
	}
}

// WithAssumeObjects makes lookups through missing parents a render error.
func WithAssumeObjects(assume bool) Option {
	return func(cfg *config) {
		cfg.compile.AssumeObjects = assume
	}
}

// WithCompat enables mustache style recursive lookup: a name missing on the
// current context is searched on every parent context.
func WithCompat(compat bool) Option {
	return func(cfg *config) {
		cfg.compile.Compat = compat
	}
}

// WithKnownHelpers declares helpers that will exist at render time. A false
// value removes a built-in helper from the known set.
func WithKnownHelpers(known map[string]bool) Option {
	return func(cfg *config) {
		if cfg.compile.KnownHelpers == nil {
			cfg.compile.KnownHelpers = map[string]bool{}
		}
		maps.Copy(cfg.compile.KnownHelpers, known)
	}
}

// WithKnownHelpersOnly restricts helper calls to the known helpers.
func WithKnownHelpersOnly(only bool) Option {
	return func(cfg *config) {
		cfg.compile.KnownHelpersOnly = only
	}
}

// WithNoEscape disables HTML escaping.
func WithNoEscape(noEscape bool) Option {
	return func(cfg *config) {
		cfg.compile.NoEscape = noEscape
	}
}

// WithExplicitPartialContext stops partials from inheriting the caller's
// context.
func WithExplicitPartialContext(explicit bool) Option {
	return func(cfg *config) {
		cfg.compile.ExplicitPartialContext = explicit
	}
}

// WithPreventIndent stops standalone partials from indenting every line of
// their output.
func WithPreventIndent(prevent bool) Option {
	return func(cfg *config) {
		cfg.compile.PreventIndent = prevent
	}
}

// WithIgnoreStandalone disables removal of standalone tag lines.
func WithIgnoreStandalone(ignore bool) Option {
	return func(cfg *config) {
		cfg.compile.IgnoreStandalone = ignore
	}
}

// WithoutData disables "@" data variables.
func WithoutData() Option {
	return func(cfg *config) {
		cfg.compile.NoData = true
	}
}

// WithData provides "@" data variables to the render. This option is
// additive; later values win.
func WithData(data map[string]any) Option {
	return func(cfg *config) {
		if cfg.data == nil {
			cfg.data = map[string]any{}
		}
		maps.Copy(cfg.data, data)
	}
}

// WithHelpers adds helpers to the render. They shadow helpers registered on
// the Env.
func WithHelpers(helpers map[string]any) Option {
	return func(cfg *config) {
		maps.Copy(cfg.helpers, helpers)
	}
}

// WithHelper adds a single helper to the render.
func WithHelper(name string, fn any) Option {
	return func(cfg *config) {
		cfg.helpers[name] = fn
	}
}

// WithPartials adds partials to the render. Values may be template source,
// a parsed *ast.Program, a *Template or a compiled *bytecode.Template.
func WithPartials(partials map[string]any) Option {
	return func(cfg *config) {
		maps.Copy(cfg.partials, partials)
	}
}

// WithDecorators adds decorators to the render.
func WithDecorators(decorators map[string]any) Option {
	return func(cfg *config) {
		maps.Copy(cfg.decorators, decorators)
	}
}

// WithBlockParams seeds the block parameters of the main program.
func WithBlockParams(params ...any) Option {
	return func(cfg *config) {
		cfg.blockParams = params
	}
}

// WithDepths provides ancestor contexts for "../" lookups, nearest first.
func WithDepths(depths ...any) Option {
	return func(cfg *config) {
		cfg.depths = depths
	}
}

// WithAllowedProtoProperties allows (true) or denies (false) inherited
// properties by name.
func WithAllowedProtoProperties(names map[string]bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowedProtoProperties = names
	}
}

// WithAllowedProtoMethods allows (true) or denies (false) methods by name.
func WithAllowedProtoMethods(names map[string]bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowedProtoMethods = names
	}
}

// WithProtoPropertiesByDefault decides unlisted inherited properties.
func WithProtoPropertiesByDefault(allow bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowProtoPropertiesByDefault = &allow
	}
}

// WithProtoMethodsByDefault decides unlisted methods.
func WithProtoMethodsByDefault(allow bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowProtoMethodsByDefault = &allow
	}
}

// WithHelperMissingCalls lets templates call helperMissing and
// blockHelperMissing by name.
func WithHelperMissingCalls(allow bool) Option {
	return func(cfg *config) {
		cfg.allowHelperMissing = allow
	}
}

// WithLogger overrides the Env logger for one render.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = &logger
	}
}

// WithObserver sets an observer for render events. The observer receives
// callbacks for instruction steps and for helper, partial and decorator
// calls, which enables tracing, template coverage and profiling.
func WithObserver(observer vm.Observer) Option {
	return func(cfg *config) {
		cfg.observer = observer
	}
}
