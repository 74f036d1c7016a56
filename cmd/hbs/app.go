package main

import (
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/hbs"
	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/store"
)

// app holds what the commands share.
type app struct {
	cfg    *Config
	logger zerolog.Logger
	store  store.Store
	redis  *redis.Client
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	level, _ := zerolog.ParseLevel(a.cfg.LogLevel)
	stderr := cmd.ErrOrStderr()
	a.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     stderr,
		NoColor: !useColor(a.cfg, stderr),
	}).Level(level).With().Timestamp().Logger()

	if a.cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err := a.redis.Ping(cmd.Context()).Err(); err != nil {
			a.logger.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("template cache unavailable")
			_ = a.redis.Close()
			a.redis = nil
		} else {
			a.store = store.NewRedis(a.redis,
				store.WithPrefix(a.cfg.CachePrefix),
				store.WithTTL(a.cfg.CacheTTL))
			a.logger.Debug().Str("addr", a.cfg.RedisAddr).Msg("using template cache")
		}
	}
	return nil
}

func (a *app) close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// newEnv returns an Env with the configured partials registered.
func (a *app) newEnv(partialFlags []string) (*hbs.Env, error) {
	env := hbs.New()
	env.SetLogger(a.logger)
	if a.cfg.PartialsDir != "" {
		partials, err := findPartials(a.cfg.PartialsDir, a.cfg.Extensions)
		if err != nil {
			return nil, err
		}
		if err := env.RegisterPartials(partials); err != nil {
			return nil, err
		}
		a.logger.Debug().Int("count", len(partials)).Str("dir", a.cfg.PartialsDir).Msg("registered partials")
	}
	partials, err := parsePartialFlags(partialFlags)
	if err != nil {
		return nil, err
	}
	if err := env.RegisterPartials(partials); err != nil {
		return nil, err
	}
	return env, nil
}

// compileFlags are the compile options shared by several commands.
type compileFlags struct {
	strict           bool
	assumeObjects    bool
	compat           bool
	noEscape         bool
	ignoreStandalone bool
	preventIndent    bool
	knownHelpersOnly bool
}

func (a *app) addCompileFlags(cmd *cobra.Command, f *compileFlags) {
	flags := cmd.Flags()
	flags.BoolVar(&f.strict, "strict", a.cfg.Strict, "fail on missing values")
	flags.BoolVar(&f.assumeObjects, "assume-objects", false, "fail on lookups through missing parents")
	flags.BoolVar(&f.compat, "compat", false, "recursive lookup through parent contexts")
	flags.BoolVar(&f.noEscape, "no-escape", a.cfg.NoEscape, "disable HTML escaping")
	flags.BoolVar(&f.ignoreStandalone, "ignore-standalone", a.cfg.IgnoreStandalone, "keep standalone tag lines")
	flags.BoolVar(&f.preventIndent, "prevent-indent", false, "do not reindent standalone partials")
	flags.BoolVar(&f.knownHelpersOnly, "known-helpers-only", false, "only allow built-in helpers")
}

func (f *compileFlags) options() []hbs.Option {
	return []hbs.Option{
		hbs.WithStrict(f.strict),
		hbs.WithAssumeObjects(f.assumeObjects),
		hbs.WithCompat(f.compat),
		hbs.WithNoEscape(f.noEscape),
		hbs.WithIgnoreStandalone(f.ignoreStandalone),
		hbs.WithPreventIndent(f.preventIndent),
		hbs.WithKnownHelpersOnly(f.knownHelpersOnly),
	}
}

// report prints err as a diagnostic and returns errReported.
func (a *app) report(w io.Writer, err error) error {
	fmt.Fprint(w, errors.NewFormatter(useColor(a.cfg, w)).FormatError(err))
	return errReported
}
