package bytecode

import (
	"strings"

	"github.com/deepnoodle-ai/hbs/compiler"
)

const (
	// CompilerRevision identifies the instruction format written by the code
	// generator. It changes whenever the runtime contract changes.
	CompilerRevision = 3

	// LastCompatibleRevision is the oldest revision the runtime can execute.
	LastCompatibleRevision = 2

	// Version is the release that introduced CompilerRevision.
	Version = "0.3.0"
)

// RevisionChanges describes the releases that wrote each revision.
var RevisionChanges = map[int]string{
	1: "<= 0.1.x",
	2: "== 0.2.x",
	3: ">= 0.3.0",
}

// Revision is the compiler revision recorded on a template.
type Revision struct {
	Number  int    `json:"number"`
	Version string `json:"version"`
}

// CurrentRevision returns the revision written by this build.
func CurrentRevision() Revision {
	return Revision{Number: CompilerRevision, Version: Version}
}

// Template is a compiled template: the main program, the table of child
// programs it references and the flags the runtime needs to execute it.
// It is immutable after creation and safe for concurrent use.
type Template struct {
	id       string
	filename string
	source   string
	revision Revision
	options  *compiler.Options

	main     *Code
	programs []*Code

	useDepths      bool
	useBlockParams bool
	usePartial     bool
	useDecorators  bool
}

// TemplateParams contains parameters for creating a new Template.
type TemplateParams struct {
	ID       string
	Filename string
	Source   string
	Revision Revision
	Options  *compiler.Options
	Main     *Code
	Programs []*Code

	UseDepths      bool
	UseBlockParams bool
	UsePartial     bool
	UseDecorators  bool
}

// NewTemplate creates a new immutable Template from the given parameters.
func NewTemplate(params TemplateParams) *Template {
	var programs []*Code
	if len(params.Programs) > 0 {
		programs = make([]*Code, len(params.Programs))
		copy(programs, params.Programs)
	}
	return &Template{
		id:             params.ID,
		filename:       params.Filename,
		source:         params.Source,
		revision:       params.Revision,
		options:        params.Options.Clone(),
		main:           params.Main,
		programs:       programs,
		useDepths:      params.UseDepths,
		useBlockParams: params.UseBlockParams,
		usePartial:     params.UsePartial,
		useDecorators:  params.UseDecorators,
	}
}

// ID returns the unique identifier assigned when the template was compiled.
func (t *Template) ID() string {
	return t.id
}

// Filename returns the template name used in error messages.
func (t *Template) Filename() string {
	return t.filename
}

// Source returns the template source, if it was recorded.
func (t *Template) Source() string {
	return t.source
}

// Revision returns the compiler revision that produced the template.
func (t *Template) Revision() Revision {
	return t.revision
}

// Options returns a copy of the options the template was compiled with.
func (t *Template) Options() *compiler.Options {
	return t.options.Clone()
}

// Main returns the top level program.
func (t *Template) Main() *Code {
	return t.main
}

// ProgramCount returns the number of child programs.
func (t *Template) ProgramCount() int {
	return len(t.programs)
}

// ProgramAt returns the child program at the given index.
func (t *Template) ProgramAt(index int) *Code {
	return t.programs[index]
}

// UseData reports whether the template reads "@" data.
func (t *Template) UseData() bool { return !t.options.NoData }

// UseDepths reports whether any program reads parent contexts.
func (t *Template) UseDepths() bool { return t.useDepths }

// UseBlockParams reports whether any program reads block parameters.
func (t *Template) UseBlockParams() bool { return t.useBlockParams }

// UsePartial reports whether the template invokes partials.
func (t *Template) UsePartial() bool { return t.usePartial }

// UseDecorators reports whether any program registers decorators.
func (t *Template) UseDecorators() bool { return t.useDecorators }

// Compat reports whether the template was compiled in compat mode.
func (t *Template) Compat() bool { return t.options.Compat }

// Strict reports whether the template was compiled in strict mode.
func (t *Template) Strict() bool { return t.options.Strict }

// Codes returns the main program followed by every child program.
// This returns a newly allocated slice, not internal state.
func (t *Template) Codes() []*Code {
	codes := make([]*Code, 0, len(t.programs)+1)
	codes = append(codes, t.main)
	codes = append(codes, t.programs...)
	return codes
}

// Stats returns statistics about the template.
func (t *Template) Stats() Stats {
	s := Stats{
		ProgramCount: len(t.programs),
		SourceBytes:  len(t.source),
	}
	for _, code := range t.Codes() {
		code.stats(&s)
	}
	return s
}

// GetSourceLine returns the source line at the given 1-based line number.
func (t *Template) GetSourceLine(lineNum int) string {
	if lineNum < 1 || t.source == "" {
		return ""
	}
	source := t.source
	for i := 1; i < lineNum; i++ {
		idx := strings.IndexByte(source, '\n')
		if idx < 0 {
			return ""
		}
		source = source[idx+1:]
	}
	if idx := strings.IndexByte(source, '\n'); idx >= 0 {
		source = source[:idx]
	}
	return source
}
