package vm

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
)

// PartialCompiler compiles a partial that was registered in uncompiled form,
// such as template source or a parsed AST. opts are the compile options of
// the template invoking the partial.
type PartialCompiler func(name string, partial any, opts *compiler.Options) (*bytecode.Template, error)

// Option is a configuration function for a render.
type Option func(*config)

type config struct {
	data        *Frame
	helpers     map[string]any
	partials    map[string]any
	decorators  map[string]any
	blockParams []any
	depths      []any

	policy             AccessPolicy
	allowHelperMissing bool
	accessLog          *AccessLog
	logger             zerolog.Logger

	compiler      PartialCompiler
	observer      Observer
	checkInterval int
}

func newConfig(options []Option) *config {
	cfg := &config{
		helpers:       map[string]any{},
		partials:      map[string]any{},
		decorators:    map[string]any{},
		logger:        log.Logger,
		checkInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// WithData provides the root "@" data of the render.
func WithData(data map[string]any) Option {
	return func(cfg *config) {
		cfg.data = FrameOf(data)
	}
}

// WithDataFrame provides the root data frame of the render.
func WithDataFrame(frame *Frame) Option {
	return func(cfg *config) {
		cfg.data = frame
	}
}

// WithHelpers adds helpers. Later options win on name conflicts.
func WithHelpers(helpers map[string]any) Option {
	return func(cfg *config) {
		for name, fn := range helpers {
			cfg.helpers[name] = fn
		}
	}
}

// WithPartials adds partials: compiled templates, programs, ProgramFunc
// values, or anything the PartialCompiler accepts.
func WithPartials(partials map[string]any) Option {
	return func(cfg *config) {
		for name, p := range partials {
			cfg.partials[name] = p
		}
	}
}

// WithDecorators adds decorators.
func WithDecorators(decorators map[string]any) Option {
	return func(cfg *config) {
		for name, fn := range decorators {
			cfg.decorators[name] = fn
		}
	}
}

// WithBlockParams seeds the block parameters visible to the main program.
func WithBlockParams(params []any) Option {
	return func(cfg *config) {
		cfg.blockParams = params
	}
}

// WithDepths provides the ancestor contexts of the render, nearest first.
func WithDepths(depths []any) Option {
	return func(cfg *config) {
		cfg.depths = depths
	}
}

// WithAccessPolicy sets the access policy for inherited members.
func WithAccessPolicy(policy AccessPolicy) Option {
	return func(cfg *config) {
		cfg.policy = policy
	}
}

// WithAllowedProtoProperties allows or denies inherited properties by name.
func WithAllowedProtoProperties(names map[string]bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowedProtoProperties = names
	}
}

// WithAllowedProtoMethods allows or denies methods by name.
func WithAllowedProtoMethods(names map[string]bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowedProtoMethods = names
	}
}

// WithProtoPropertiesByDefault decides inherited properties that are not
// listed explicitly, and silences the denial warning.
func WithProtoPropertiesByDefault(allow bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowProtoPropertiesByDefault = &allow
	}
}

// WithProtoMethodsByDefault decides methods that are not listed explicitly,
// and silences the denial warning.
func WithProtoMethodsByDefault(allow bool) Option {
	return func(cfg *config) {
		cfg.policy.AllowProtoMethodsByDefault = &allow
	}
}

// WithHelperMissingCalls keeps helperMissing and blockHelperMissing
// callable from templates by name.
func WithHelperMissingCalls(allow bool) Option {
	return func(cfg *config) {
		cfg.allowHelperMissing = allow
	}
}

// WithLogger sets the logger for access warnings and the log helper.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithAccessLog sets the log of reported access denials. The default is
// DefaultAccessLog.
func WithAccessLog(l *AccessLog) Option {
	return func(cfg *config) {
		cfg.accessLog = l
	}
}

// WithPartialCompiler sets the compiler for uncompiled partials.
func WithPartialCompiler(fn PartialCompiler) Option {
	return func(cfg *config) {
		cfg.compiler = fn
	}
}

// WithObserver sets an observer for render events.
// Returning false from any observer method halts rendering immediately.
func WithObserver(observer Observer) Option {
	return func(cfg *config) {
		cfg.observer = observer
	}
}

// WithContextCheckInterval sets how often, in instructions, the render
// checks for context cancellation. A value of 0 disables the check.
func WithContextCheckInterval(interval int) Option {
	return func(cfg *config) {
		cfg.checkInterval = interval
	}
}
