package hbs

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/parser"
	"github.com/deepnoodle-ai/hbs/store"
	"github.com/deepnoodle-ai/hbs/vm"
	"github.com/deepnoodle-ai/hbs/whitespace"
)

func render(t *testing.T, env *Env, src string, value any, opts ...Option) string {
	t.Helper()
	out, err := env.Render(context.Background(), src, value, opts...)
	require.NoError(t, err)
	return out
}

func TestWhitespaceIdempotent(t *testing.T) {
	src := "<ul>\n  {{#each items}}\n  <li>{{this}}</li>\n  {{/each}}\n</ul>\n"
	value := map[string]any{"items": []string{"a", "b"}}
	want := render(t, New(), src, value)
	require.Equal(t, "<ul>\n  <li>a</li>\n  <li>b</li>\n</ul>\n", want)

	root, err := parser.Parse(context.Background(), src)
	require.NoError(t, err)
	whitespace.Strip(root, whitespace.Options{})
	whitespace.Strip(root, whitespace.Options{})

	// CompileAST strips a third time.
	out, err := New().CompileAST(root).Render(context.Background(), value)
	require.NoError(t, err)
	require.Equal(t, want, out)
}

func TestStandaloneBlock(t *testing.T) {
	env := New()
	require.NoError(t, env.RegisterPartial("p", "x\n"))
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"if", "  {{#if true}}\nX\n{{/if}}\n", "X\n"},
		{"each", "<ul>\n  {{#each items}}\n  <li>{{this}}</li>\n  {{/each}}\n</ul>\n", "<ul>\n  <li>a</li>\n  <li>b</li>\n</ul>\n"},
		{"inverted", "{{^missing}}\nnone\n{{/missing}}\n", "none\n"},
		{"partial in block", "{{#if true}}\n  {{> p}}\n{{/if}}\n", "  x\n"},
		{"nested each", "{{#each rows}}\n  {{#each this}}\n    {{this}}\n  {{/each}}\n{{/each}}\n", "    1\n    2\n"},
	}
	value := map[string]any{
		"items": []string{"a", "b"},
		"rows":  [][]int{{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, render(t, env, tt.src, value))
		})
	}

	out := render(t, New(), "  {{#if true}}\nX\n{{/if}}\n", nil, WithIgnoreStandalone(true))
	require.Equal(t, "  \nX\n\n", out)
}

func TestEscaping(t *testing.T) {
	value := map[string]any{"v": "<a>&'\"`"}
	require.Equal(t, "&lt;a&gt;&amp;&#x27;&quot;&#x60;", render(t, New(), "{{v}}", value))
	require.Equal(t, "<a>&'\"`", render(t, New(), "{{{v}}}", value))
	require.Equal(t, "<a>&'\"`", render(t, New(), "{{v}}", value, WithNoEscape(true)))
}

func TestHelperPrecedence(t *testing.T) {
	env := New()
	value := map[string]any{"foo": "property"}
	require.Equal(t, "property", render(t, env, "{{foo}}", value))

	require.NoError(t, env.RegisterHelper("foo", vm.HelperFunc(func(this any, args []any, opts *vm.Options) (any, error) {
		return "helper", nil
	})))
	require.Equal(t, "helper", render(t, env, "{{foo}}", value))

	_, err := New().Render(context.Background(), "{{bar 1}}", value)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Missing helper")
}

func TestHelperShadowsData(t *testing.T) {
	shadowed := New()
	require.NoError(t, shadowed.RegisterHelper("index", func() string { return "i" }))
	tests := []struct {
		name string
		env  *Env
		src  string
		want string
	}{
		{"data value", New(), "{{#each arr}}{{@index}}{{/each}}", "01"},
		{"helper wins", shadowed, "{{#each arr}}{{@index}}{{/each}}", "ii"},
		{"nested data path", shadowed, "{{#each arr}}{{@root.name}}{{/each}}", "xx"},
		{"missing data", New(), "[{{@index}}]", "[]"},
	}
	value := map[string]any{"arr": []int{10, 20}, "name": "x"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, render(t, tt.env, tt.src, value))
		})
	}
}

func TestEach(t *testing.T) {
	env := New()
	src := "{{#each arr}}{{@index}}:{{this}};{{/each}}"
	require.Equal(t, "0:10;1:20;", render(t, env, src, map[string]any{"arr": []int{10, 20}}))

	obj := vm.NewOrderedMap()
	obj.Set("z", 1)
	obj.Set("a", 2)
	out := render(t, env, "{{#each o}}{{@key}}={{this}} {{/each}}", map[string]any{"o": obj})
	require.Equal(t, "z=1 a=2 ", out)

	out = render(t, env, "{{#each arr}}X{{else}}Y{{/each}}", map[string]any{"arr": []int{}})
	require.Equal(t, "Y", out)
}

func TestAscent(t *testing.T) {
	value := map[string]any{
		"x": "root",
		"a": map[string]any{
			"x": "a",
			"b": map[string]any{"x": "b"},
		},
	}
	env := New()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"one level", "{{#with a}}{{../x}}{{/with}}", "root"},
		{"two levels", "{{#with a}}{{#with b}}{{x}}/{{../x}}/{{../../x}}{{/with}}{{/with}}", "b/a/root"},
		{"beyond root", "{{#with a}}[{{../../x}}]{{/with}}", "[]"},
		{"far beyond root", "[{{../../../x}}]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, render(t, env, tt.src, value))
		})
	}
}

type account struct {
	Owner string
}

type user struct {
	account
	Name string
}

func TestAccessControl(t *testing.T) {
	var buf bytes.Buffer
	env := New()
	env.SetLogger(zerolog.New(&buf))
	env.SetAccessLog(vm.NewAccessLog())

	value := user{account: account{Owner: "ada"}, Name: "n"}
	require.Equal(t, "n[]", render(t, env, "{{Name}}[{{Owner}}]", value))
	require.Equal(t, "[]", render(t, env, "[{{Owner}}]", value))
	require.Equal(t, 1, strings.Count(buf.String(), "Access has been denied"))

	out := render(t, env, "{{Owner}}", value, WithAllowedProtoProperties(map[string]bool{"Owner": true}))
	require.Equal(t, "ada", out)
}

func TestPartialIndent(t *testing.T) {
	env := New()
	require.NoError(t, env.RegisterPartial("lines", "x\ny\n"))
	require.Equal(t, "  x\n  y\n", render(t, env, "  {{> lines}}\n", nil))
	require.Equal(t, "  x\ny\n", render(t, env, "  {{> lines}}\n", nil, WithPreventIndent(true)))
}

func TestRevisionMismatch(t *testing.T) {
	data, err := New().Precompile("{{a}}")
	require.NoError(t, err)

	var artifact map[string]any
	require.NoError(t, json.Unmarshal(data, &artifact))
	artifact["revision"] = map[string]any{"number": 1, "version": "0.1.0"}
	old, err := json.Marshal(artifact)
	require.NoError(t, err)

	_, err = New().Load(old)
	require.Error(t, err)
	var re *errors.RenderError
	require.True(t, errors.As(err, &re))
	require.Equal(t, errors.E3004, re.Code)
	require.Contains(t, re.Error(), "older version")

	artifact["revision"] = map[string]any{"number": 99, "version": "9.0.0"}
	newer, err := json.Marshal(artifact)
	require.NoError(t, err)
	_, err = New().Load(newer)
	require.Error(t, err)
	require.Contains(t, err.Error(), "newer version")
}

func TestLoadRejectsCorruptArtifact(t *testing.T) {
	tests := []struct {
		name  string
		index int
		value int
		err   string
	}{
		{"unknown opcode", 0, 99, "invalid opcode 99"},
		{"constant out of range", 1, 99, "constant index 99 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := New()
			data, err := env.Precompile("hello {{name}}")
			require.NoError(t, err)

			var artifact map[string]any
			require.NoError(t, json.Unmarshal(data, &artifact))
			codes := artifact["codes"].([]any)
			main := codes[int(artifact["main"].(float64))].(map[string]any)
			main["instructions"].([]any)[tt.index] = tt.value
			corrupt, err := json.Marshal(artifact)
			require.NoError(t, err)

			_, err = env.Load(corrupt)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestPrecompileLoad(t *testing.T) {
	env := New()
	data, err := env.Precompile("{{#each items}}{{upper this}}{{/each}}", WithFilename("list.hbs"))
	require.NoError(t, err)

	tmpl, err := env.Load(data)
	require.NoError(t, err)
	require.Equal(t, "list.hbs", tmpl.Filename())

	require.NoError(t, env.RegisterHelper("upper", strings.ToUpper))
	out, err := tmpl.Render(context.Background(), map[string]any{"items": []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, "AB", out)

	_, err = env.Load([]byte("not json"))
	require.Error(t, err)
}

func TestCompileErrors(t *testing.T) {
	tmpl := New().Compile("{{#if a}}x{{/each}}")
	_, err := tmpl.Render(context.Background(), nil)
	require.Error(t, err)
	_, err2 := tmpl.Bytecode()
	require.Equal(t, err, err2)

	_, err = New().Render(context.Background(), "{{foo 1}}", nil, WithKnownHelpersOnly(true))
	require.Error(t, err)
}

func TestCompileAll(t *testing.T) {
	templates, err := New().CompileAll(map[string]string{
		"good": "{{a}}",
		"bad1": "{{#if a}}x{{/each}}",
		"bad2": "{{> a b c}}",
	})
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.Len(t, templates, 1)
	require.Equal(t, "good", templates["good"].Filename())
}

func TestRegistration(t *testing.T) {
	env := New()
	require.Error(t, env.RegisterHelper("x", "not a function"))
	require.Error(t, env.RegisterPartial("x", 42))
	require.Error(t, env.RegisterDecorator("x", func() {}))

	err := env.RegisterHelpers(map[string]any{"a": 1, "b": 2, "ok": strings.ToUpper})
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.NotNil(t, env.Helper("ok"))

	require.NoError(t, env.RegisterHelper("shout", func() string { return "HEY" }))
	require.Equal(t, "HEY", render(t, env, "{{shout}}", nil))
	env.UnregisterHelper("shout")
	require.Equal(t, "", render(t, env, "{{shout}}", nil))

	require.NoError(t, env.RegisterPartials(map[string]any{"p": "[{{this}}]"}))
	require.Equal(t, "[v]", render(t, env, "{{> p}}", "v"))
	env.UnregisterPartial("p")
	require.Nil(t, env.Partial("p"))
	_, err = env.Render(context.Background(), "{{> p}}", "v")
	require.Error(t, err)
}

func TestEnvIsolation(t *testing.T) {
	a, b := New(), New()
	require.NoError(t, a.RegisterHelper("who", func() string { return "a" }))
	require.Equal(t, "a", render(t, a, "{{who}}", nil))
	require.Equal(t, "", render(t, b, "{{who}}", nil))

	empty := NewEmpty()
	require.Nil(t, empty.Helper("each"))
	require.NotNil(t, a.Helper("each"))
}

func TestRenderOptionsShadowEnv(t *testing.T) {
	env := New()
	require.NoError(t, env.RegisterHelper("name", func() string { return "env" }))
	require.NoError(t, env.RegisterPartial("p", "env partial"))

	out := render(t, env, "{{name}} {{> p}}", nil,
		WithHelper("name", func() string { return "render" }),
		WithPartials(map[string]any{"p": "render partial"}))
	require.Equal(t, "render render partial", out)

	require.Equal(t, "env env partial", render(t, env, "{{name}} {{> p}}", nil))
}

func TestRenderOptions(t *testing.T) {
	env := New()
	require.Equal(t, "x-y", render(t, env, "{{@a}}-{{@b}}", nil, WithData(map[string]any{"a": "x"}), WithData(map[string]any{"b": "y"})))

	_, err := env.Render(context.Background(), "{{missing}}", map[string]any{}, WithStrict(true))
	var re *errors.RenderError
	require.True(t, errors.As(err, &re))
	require.Equal(t, errors.E3003, re.Code)

	out := render(t, env, "{{#with a}}{{b}}{{/with}}", map[string]any{"a": map[string]any{}, "b": "outer"}, WithCompat(true))
	require.Equal(t, "outer", out)
}

func TestPartialCompileCache(t *testing.T) {
	env := New()
	require.NoError(t, env.RegisterPartial("p", "<{{this}}>"))
	tmpl := env.Compile("{{> p}}{{> p}}")
	for i := 0; i < 3; i++ {
		out, err := tmpl.Render(context.Background(), "v")
		require.NoError(t, err)
		require.Equal(t, "<v><v>", out)
	}
	count := 0
	env.partialCache.Range(func(key, value any) bool {
		count++
		return true
	})
	require.Equal(t, 1, count)
}

func TestConcurrentRender(t *testing.T) {
	tmpl := New().Compile("{{#each items}}{{this}}{{/each}}")
	var wg sync.WaitGroup
	results := make([]string, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tmpl.Render(context.Background(), map[string]any{"items": []int{1, 2, 3}})
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, "123", results[i])
	}
}

func TestCompileCached(t *testing.T) {
	ctx := context.Background()
	env := New()
	s := store.NewMemory()

	tmpl, err := env.CompileCached(ctx, s, "Hi {{name}}", WithStrict(true))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	out, err := tmpl.Render(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Hi Ada", out)

	cached, err := env.CompileCached(ctx, s, "Hi {{name}}", WithStrict(true))
	require.NoError(t, err)
	require.True(t, cached.Options().Strict)
	out, err = cached.Render(ctx, map[string]any{"name": "Bob"})
	require.NoError(t, err)
	require.Equal(t, "Hi Bob", out)

	_, err = env.CompileCached(ctx, s, "Hi {{name}}")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
}

func TestCompileCachedReplacesBadArtifact(t *testing.T) {
	ctx := context.Background()
	env := New()
	env.SetLogger(zerolog.Nop())
	s := store.NewMemory()
	key, err := store.Key("{{a}}", &newConfig().compile)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, key, []byte("garbage")))

	tmpl, err := env.CompileCached(ctx, s, "{{a}}")
	require.NoError(t, err)
	out, err := tmpl.Render(ctx, map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, "1", out)

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	_, err = env.Load(data)
	require.NoError(t, err)
}

func TestPackageFunctions(t *testing.T) {
	out, err := Render(context.Background(), "{{#if ok}}yes{{/if}}", map[string]any{"ok": true})
	require.NoError(t, err)
	require.Equal(t, "yes", out)

	data, err := Precompile("{{x}}")
	require.NoError(t, err)
	tmpl, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, "1", tmpl.MustRender(context.Background(), map[string]any{"x": 1}))
	require.Equal(t, "2", Compile("{{x}}").MustRender(context.Background(), map[string]any{"x": 2}))
	require.Same(t, Default(), tmpl.Env())
}

func TestDocs(t *testing.T) {
	quick := Docs().JSON()
	require.Contains(t, quick, "syntax_quick_ref")
	require.Contains(t, quick, "topics")

	all := Docs(DocsAll()).JSON()
	for _, section := range []string{"helpers", "syntax", "errors", "options"} {
		require.Contains(t, all, `"`+section+`"`)
	}

	require.Contains(t, Docs(DocsCategory("helpers")).JSON(), `"each"`)
	require.Contains(t, Docs(DocsCategory("nope")).JSON(), "unknown category")
	require.Contains(t, Docs(DocsTopic("lookup")).JSON(), `"helper"`)
	require.Contains(t, Docs(DocsTopic("E3002")).JSON(), "missing partial")
	require.Contains(t, Docs(DocsTopic("nope")).JSON(), "unknown topic")
}
