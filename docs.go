package hbs

import (
	"encoding/json"

	"github.com/deepnoodle-ai/hbs/builtins"
	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/errors"
)

// DocsOption configures documentation retrieval.
type DocsOption func(*docsOptions)

type docsOptions struct {
	category string
	topic    string
	all      bool
}

// DocsCategory filters documentation to a specific category.
// Valid categories: "helpers", "syntax", "errors", "options"
func DocsCategory(cat string) DocsOption {
	return func(o *docsOptions) {
		o.category = cat
	}
}

// DocsTopic retrieves documentation for a helper or an error code.
// Examples: "each", "E3002"
func DocsTopic(topic string) DocsOption {
	return func(o *docsOptions) {
		o.topic = topic
	}
}

// DocsAll returns complete documentation.
func DocsAll() DocsOption {
	return func(o *docsOptions) {
		o.all = true
	}
}

// Documentation provides structured access to hbs documentation.
type Documentation struct {
	data any
}

// JSON returns the documentation as a JSON string.
func (d *Documentation) JSON() string {
	b, _ := json.MarshalIndent(d.data, "", "  ")
	return string(b)
}

// Data returns the raw documentation data.
func (d *Documentation) Data() any {
	return d.data
}

type docsInfo struct {
	Version     string `json:"version"`
	Revision    int    `json:"revision"`
	Description string `json:"description"`
	Pipeline    string `json:"pipeline"`
}

type docsSyntaxItem struct {
	Syntax string `json:"syntax"`
	Notes  string `json:"notes"`
}

type docsErrorCode struct {
	Code        string `json:"code"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type docsOption struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Notes string `json:"notes"`
}

type docsQuickReference struct {
	Hbs    docsInfo          `json:"hbs"`
	Syntax []docsSyntaxItem  `json:"syntax_quick_ref"`
	Topics map[string]string `json:"topics"`
}

type docsFullDocumentation struct {
	Hbs     docsInfo               `json:"hbs"`
	Helpers []builtins.HelperSpec  `json:"helpers"`
	Syntax  []docsSyntaxItem       `json:"syntax"`
	Errors  []docsErrorCode        `json:"errors"`
	Options []docsOption           `json:"options"`
}

// Docs returns structured documentation about the template language and
// its built-in helpers. With no options it returns a quick reference.
func Docs(opts ...DocsOption) *Documentation {
	o := &docsOptions{}
	for _, opt := range opts {
		opt(o)
	}
	switch {
	case o.all:
		return &Documentation{data: buildFullDocumentation()}
	case o.category != "":
		return &Documentation{data: buildCategoryDocs(o.category)}
	case o.topic != "":
		return &Documentation{data: buildTopicDocs(o.topic)}
	}
	return &Documentation{data: buildQuickReference()}
}

func info() docsInfo {
	return docsInfo{
		Version:     bytecode.Version,
		Revision:    bytecode.CompilerRevision,
		Description: "Handlebars templates for Go",
		Pipeline:    "source → parser → whitespace → compiler → codegen → vm",
	}
}

func buildQuickReference() docsQuickReference {
	return docsQuickReference{
		Hbs:    info(),
		Syntax: docsSyntax[:6],
		Topics: map[string]string{
			"helpers": "Built-in helpers (each, if, unless, with, lookup, log)",
			"syntax":  "Template syntax reference",
			"errors":  "Error codes",
			"options": "Compile and render options",
		},
	}
}

func buildFullDocumentation() docsFullDocumentation {
	return docsFullDocumentation{
		Hbs:     info(),
		Helpers: builtins.Docs(),
		Syntax:  docsSyntax,
		Errors:  errorCodes(),
		Options: docsOptionList,
	}
}

func buildCategoryDocs(category string) any {
	switch category {
	case "helpers":
		return map[string]any{
			"category": "helpers",
			"count":    len(builtins.Docs()),
			"helpers":  builtins.Docs(),
		}
	case "syntax":
		return map[string]any{
			"category": "syntax",
			"items":    docsSyntax,
		}
	case "errors":
		return map[string]any{
			"category": "errors",
			"codes":    errorCodes(),
		}
	case "options":
		return map[string]any{
			"category": "options",
			"options":  docsOptionList,
		}
	default:
		return map[string]any{
			"error": "unknown category: " + category,
		}
	}
}

func buildTopicDocs(topic string) any {
	for _, spec := range builtins.Docs() {
		if spec.Name == topic {
			return map[string]any{
				"type":   "helper",
				"helper": spec,
			}
		}
	}
	for _, code := range errorCodes() {
		if code.Code == topic {
			return map[string]any{
				"type":  "error",
				"error": code,
			}
		}
	}
	return map[string]any{
		"error": "unknown topic: " + topic,
	}
}

func errorCodes() []docsErrorCode {
	codes := errors.Codes()
	out := make([]docsErrorCode, 0, len(codes))
	for _, code := range codes {
		out = append(out, docsErrorCode{
			Code:        code.String(),
			Category:    code.Category(),
			Description: code.Description(),
		})
	}
	return out
}

var docsSyntax = []docsSyntaxItem{
	{"{{name}}", "Output a value, HTML escaped"},
	{"{{{name}}}", "Output a value without escaping"},
	{"{{#if cond}}...{{else}}...{{/if}}", "Block helper with an inverse section"},
	{"{{#each items as |item i|}}...{{/each}}", "Iterate with block parameters"},
	{"{{> partial arg key=value}}", "Render a partial"},
	{"{{!-- comment --}}", "Comment, not rendered"},
	{"{{~name~}}", "Strip whitespace on either side"},
	{"{{../name}}", "Look up a value on the parent context"},
	{"{{@index}} {{@key}} {{@root.name}}", "Data variables"},
	{"{{helper (sub arg) key=value}}", "Sub-expressions and hash arguments"},
	{"{{^cond}}...{{/cond}}", "Inverted section"},
	{"{{#> layout}}default{{/layout}}", "Partial block, available as @partial-block"},
	{"{{> (name)}}", "Dynamic partial name"},
	{"{{#*inline \"name\"}}...{{/inline}}", "Inline partial"},
	{"{{*decorator}}", "Decorator"},
	{"\\{{raw}}", "Escaped mustache, output literally"},
	{"{{{{raw}}}}...{{{{/raw}}}}", "Raw block"},
}

var docsOptionList = []docsOption{
	{"WithStrict", "compile", "Missing values are render errors"},
	{"WithAssumeObjects", "compile", "Lookups through missing parents are render errors"},
	{"WithCompat", "compile", "Recursive lookup through parent contexts"},
	{"WithKnownHelpers", "compile", "Helpers known to exist at render time"},
	{"WithKnownHelpersOnly", "compile", "Only known helpers may be called"},
	{"WithNoEscape", "compile", "Disable HTML escaping"},
	{"WithExplicitPartialContext", "compile", "Partials do not inherit the caller context"},
	{"WithPreventIndent", "compile", "Standalone partials are not reindented"},
	{"WithIgnoreStandalone", "compile", "Keep standalone tag lines"},
	{"WithoutData", "compile", "Disable @ data variables"},
	{"WithData", "render", "Initial @ data variables"},
	{"WithHelpers", "render", "Helpers for one render"},
	{"WithPartials", "render", "Partials for one render"},
	{"WithDecorators", "render", "Decorators for one render"},
	{"WithAllowedProtoProperties", "render", "Allow or deny promoted fields by name"},
	{"WithAllowedProtoMethods", "render", "Allow or deny methods by name"},
	{"WithHelperMissingCalls", "render", "Permit calling helperMissing by name"},
}
