package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deepnoodle-ai/hbs"
	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/dis"
	"github.com/deepnoodle-ai/hbs/parser"
	"github.com/deepnoodle-ai/hbs/whitespace"
)

func (a *app) renderCmd() *cobra.Command {
	var (
		flags    compileFlags
		dataPath string
		output   string
		partials []string
		dataVars []string
	)
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template with YAML or JSON data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.newEnv(partials)
			if err != nil {
				return err
			}
			source, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			value, err := loadData(dataPath)
			if err != nil {
				return err
			}
			opts := append(flags.options(), hbs.WithFilename(args[0]))
			if len(dataVars) > 0 {
				data := map[string]any{}
				for _, v := range dataVars {
					key, val, ok := strings.Cut(v, "=")
					if !ok || key == "" {
						return fmt.Errorf("invalid --set %q, expected key=value", v)
					}
					data[key] = val
				}
				opts = append(opts, hbs.WithData(data))
			}
			tmpl, err := a.compile(cmd.Context(), env, source, opts)
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			out, err := tmpl.Render(cmd.Context(), value, opts...)
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			return a.write(cmd, output, []byte(out))
		},
	}
	a.addCompileFlags(cmd, &flags)
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "YAML or JSON data file, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write output to a file")
	cmd.Flags().StringArrayVarP(&partials, "partial", "p", nil, "register a partial as name=path")
	cmd.Flags().StringArrayVar(&dataVars, "set", nil, "set an @data variable as key=value")
	return cmd
}

// compile uses the template cache when one is configured.
func (a *app) compile(ctx context.Context, env *hbs.Env, source string, opts []hbs.Option) (*hbs.Template, error) {
	if a.store != nil {
		return env.CompileCached(ctx, a.store, source, opts...)
	}
	tmpl := env.Compile(source, opts...)
	if _, err := tmpl.Bytecode(); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (a *app) precompileCmd() *cobra.Command {
	var (
		flags  compileFlags
		output string
		indent bool
	)
	cmd := &cobra.Command{
		Use:   "precompile TEMPLATE",
		Short: "Compile a template to a loadable artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			env, err := a.newEnv(nil)
			if err != nil {
				return err
			}
			data, err := env.Precompile(source, append(flags.options(), hbs.WithFilename(args[0]))...)
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			if indent {
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					return err
				}
				data = buf.Bytes()
			}
			return a.write(cmd, output, append(data, '\n'))
		},
	}
	a.addCompileFlags(cmd, &flags)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the artifact to a file")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the JSON artifact")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Compile templates and report every error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make(map[string]string, len(args))
			for _, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sources[path] = string(src)
			}
			env, err := a.newEnv(nil)
			if err != nil {
				return err
			}
			templates, err := env.CompileAll(sources, flags.options()...)
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			w := cmd.OutOrStdout()
			ok := color.New(color.FgGreen)
			if useColor(a.cfg, w) {
				ok.EnableColor()
			} else {
				ok.DisableColor()
			}
			fmt.Fprintln(w, ok.Sprintf("%d templates ok", len(templates)))
			return nil
		},
	}
	a.addCompileFlags(cmd, &flags)
	return cmd
}

func (a *app) disCmd() *cobra.Command {
	var (
		flags   compileFlags
		opcodes bool
	)
	cmd := &cobra.Command{
		Use:   "dis TEMPLATE",
		Short: "Disassemble a template or a precompiled artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !useColor(a.cfg, w) {
				color.NoColor = true
			}
			if opcodes {
				prog, err := compileProgram(cmd.Context(), source, args[0], flags)
				if err != nil {
					return a.report(cmd.ErrOrStderr(), err)
				}
				dis.PrintProgram(prog, w)
				return nil
			}
			var code *bytecode.Template
			if filepath.Ext(args[0]) == ".json" {
				code, err = bytecode.Unmarshal([]byte(source))
			} else {
				var env *hbs.Env
				if env, err = a.newEnv(nil); err == nil {
					code, err = env.Compile(source, append(flags.options(), hbs.WithFilename(args[0]))...).Bytecode()
				}
			}
			if err != nil {
				return a.report(cmd.ErrOrStderr(), err)
			}
			return dis.PrintTemplate(code, w)
		},
	}
	a.addCompileFlags(cmd, &flags)
	cmd.Flags().BoolVar(&opcodes, "opcodes", false, "print the opcode program instead of bytecode")
	return cmd
}

func compileProgram(ctx context.Context, source, filename string, flags compileFlags) (*compiler.Program, error) {
	root, err := parser.Parse(ctx, source, parser.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	whitespace.Strip(root, whitespace.Options{IgnoreStandalone: flags.ignoreStandalone})
	return compiler.Compile(root, &compiler.Config{
		Options: &compiler.Options{
			Strict:           flags.strict,
			AssumeObjects:    flags.assumeObjects,
			Compat:           flags.compat,
			NoEscape:         flags.noEscape,
			IgnoreStandalone: flags.ignoreStandalone,
			PreventIndent:    flags.preventIndent,
			KnownHelpersOnly: flags.knownHelpersOnly,
		},
		Filename: filename,
		Source:   source,
	})
}

func (a *app) docsCmd() *cobra.Command {
	var (
		category string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "docs [TOPIC]",
		Short: "Print documentation as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []hbs.DocsOption
			switch {
			case all:
				opts = append(opts, hbs.DocsAll())
			case category != "":
				opts = append(opts, hbs.DocsCategory(category))
			case len(args) == 1:
				opts = append(opts, hbs.DocsTopic(args[0]))
			}
			fmt.Fprintln(cmd.OutOrStdout(), hbs.Docs(opts...).JSON())
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "helpers, syntax, errors or options")
	cmd.Flags().BoolVar(&all, "all", false, "print all documentation")
	return cmd
}

func (a *app) write(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
