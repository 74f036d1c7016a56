// Package whitespace implements whitespace control: it removes the text
// around "~" markers and the lines occupied by standalone tags.
//
// A tag is standalone when it is the only thing on its line apart from
// whitespace. Blocks, else markers, partials and comments may be standalone;
// mustaches and inline decorators only honor "~". The pass mutates
// ContentStatement values in place and records what it did in their strip
// flags, so running it twice has no further effect.
package whitespace

import (
	"regexp"

	"github.com/deepnoodle-ai/hbs/ast"
)

var (
	prevWhitespaceRoot = regexp.MustCompile(`(^|\r?\n)\s*?$`)
	prevWhitespace     = regexp.MustCompile(`\r?\n\s*?$`)
	nextWhitespaceRoot = regexp.MustCompile(`^\s*?(\r?\n|$)`)
	nextWhitespace     = regexp.MustCompile(`^\s*?\r?\n`)

	leadingSpace    = regexp.MustCompile(`^\s+`)
	leadingLine     = regexp.MustCompile(`^[ \t]*\r?\n?`)
	trailingSpace   = regexp.MustCompile(`\s+$`)
	trailingIndent  = regexp.MustCompile(`[ \t]+$`)
	partialIndentRe = regexp.MustCompile(`([ \t]+$)`)
)

// Options configure whitespace control.
type Options struct {
	// IgnoreStandalone disables standalone tag detection; only "~" markers
	// are honored.
	IgnoreStandalone bool
}

// Strip applies whitespace control to prog and returns it.
func Strip(prog *ast.Program, opts Options) *ast.Program {
	c := &control{opts: opts}
	c.program(prog)
	return prog
}

type control struct {
	opts     Options
	rootSeen bool
}

// strip describes how a statement affects the whitespace around it.
type strip struct {
	open             bool
	close            bool
	openStandalone   bool
	closeStandalone  bool
	inlineStandalone bool
}

func (c *control) program(prog *ast.Program) {
	if prog == nil {
		return
	}
	isRoot := !c.rootSeen
	c.rootSeen = true

	body := prog.Body
	for i, current := range body {
		s := c.statement(current)
		if s == nil {
			continue
		}
		prevWS := isPrevWhitespace(body, i, isRoot)
		nextWS := isNextWhitespace(body, i, isRoot)
		openStandalone := s.openStandalone && prevWS
		closeStandalone := s.closeStandalone && nextWS
		inlineStandalone := s.inlineStandalone && prevWS && nextWS

		if s.close {
			omitRight(body, i, true)
		}
		if s.open {
			omitLeft(body, i, true)
		}

		if !c.opts.IgnoreStandalone && inlineStandalone {
			omitRight(body, i, false)
			if omitLeft(body, i, false) {
				// Standalone partials keep the stripped indentation so it can be
				// applied to every line of the partial's output.
				if partial, ok := current.(*ast.PartialStatement); ok {
					prev := body[i-1].(*ast.ContentStatement)
					partial.Indent = partialIndentRe.FindString(prev.Original)
				}
			}
		}
		if !c.opts.IgnoreStandalone && openStandalone {
			omitRight(blockBody(current, true), -1, false)
			omitLeft(body, i, false)
		}
		if !c.opts.IgnoreStandalone && closeStandalone {
			omitRight(body, i, false)
			omitLeft(blockBody(current, false), len(blockBody(current, false)), false)
		}
	}
}

// blockBody returns the body a standalone block open (first) or close tag
// borders: the first body of the block, or the last body of its inverse chain.
func blockBody(stmt ast.Stmt, first bool) []ast.Stmt {
	b := viewBlock(stmt)
	if b == nil {
		return nil
	}
	if first {
		if b.program != nil {
			return b.program.Body
		}
		if b.inverse != nil {
			return b.inverse.Body
		}
		return nil
	}
	if b.inverse != nil {
		return lastInverse(b.inverse).Body
	}
	if b.program != nil {
		return b.program.Body
	}
	return nil
}

func (c *control) statement(stmt ast.Stmt) *strip {
	switch n := stmt.(type) {
	case *ast.BlockStatement, *ast.DecoratorBlock, *ast.PartialBlockStatement:
		return c.block(viewBlock(n))
	case *ast.MustacheStatement:
		return &strip{open: n.Strip.Open, close: n.Strip.Close}
	case *ast.Decorator:
		return &strip{open: n.Strip.Open, close: n.Strip.Close}
	case *ast.PartialStatement:
		return &strip{open: n.Strip.Open, close: n.Strip.Close, inlineStandalone: true}
	case *ast.CommentStatement:
		return &strip{open: n.Strip.Open, close: n.Strip.Close, inlineStandalone: true}
	}
	return nil
}

// block is the part of a block-like statement whitespace control looks at.
type block struct {
	program      *ast.Program
	inverse      *ast.Program
	openStrip    ast.StripFlags
	inverseStrip ast.StripFlags
	closeStrip   ast.StripFlags
}

func viewBlock(stmt ast.Stmt) *block {
	switch n := stmt.(type) {
	case *ast.BlockStatement:
		return &block{n.Program, n.Inverse, n.OpenStrip, n.InverseStrip, n.CloseStrip}
	case *ast.DecoratorBlock:
		return &block{program: n.Program, openStrip: n.OpenStrip, closeStrip: n.CloseStrip}
	case *ast.PartialBlockStatement:
		return &block{program: n.Program, openStrip: n.OpenStrip, closeStrip: n.CloseStrip}
	}
	return nil
}

func (c *control) block(b *block) *strip {
	c.program(b.program)
	c.program(b.inverse)

	program := b.program
	if program == nil {
		program = b.inverse
	}
	inverse := b.inverse
	if b.program == nil {
		inverse = nil
	}
	firstInverse, lastInv := inverse, inverse
	if inverse != nil && inverse.Chained {
		firstInverse = inverse.Body[0].(*ast.BlockStatement).Program
		lastInv = lastInverse(inverse)
	}

	// the close tag borders the last inverse, or the program without one
	closeBody := bodyOf(lastInv)
	if lastInv == nil {
		closeBody = bodyOf(program)
	}
	s := &strip{
		open:            b.openStrip.Open,
		close:           b.closeStrip.Close,
		openStandalone:  isNextWhitespace(bodyOf(program), -1, false),
		closeStandalone: isPrevWhitespace(closeBody, len(closeBody), false),
	}

	if b.openStrip.Close {
		omitRight(bodyOf(program), -1, true)
	}

	if inverse != nil {
		if b.inverseStrip.Open {
			omitLeft(bodyOf(program), len(bodyOf(program)), true)
		}
		if b.inverseStrip.Close {
			omitRight(bodyOf(firstInverse), -1, true)
		}
		if b.closeStrip.Open {
			omitLeft(bodyOf(lastInv), len(bodyOf(lastInv)), true)
		}

		// The else marker is standalone when the line around it is blank.
		if !c.opts.IgnoreStandalone &&
			isPrevWhitespace(bodyOf(program), len(bodyOf(program)), false) &&
			isNextWhitespace(bodyOf(firstInverse), -1, false) {
			omitLeft(bodyOf(program), len(bodyOf(program)), false)
			omitRight(bodyOf(firstInverse), -1, false)
		}
	} else if b.closeStrip.Open {
		omitLeft(bodyOf(program), len(bodyOf(program)), true)
	}
	return s
}

func bodyOf(p *ast.Program) []ast.Stmt {
	if p == nil {
		return nil
	}
	return p.Body
}

// lastInverse follows an else-if chain to its final program.
func lastInverse(p *ast.Program) *ast.Program {
	for p != nil && p.Chained {
		next := p.Body[len(p.Body)-1].(*ast.BlockStatement)
		if next.Inverse == nil {
			return next.Program
		}
		p = next.Inverse
	}
	return p
}

// isPrevWhitespace reports whether the text before body[i] ends in a blank
// line. Without a preceding statement the answer is isRoot.
func isPrevWhitespace(body []ast.Stmt, i int, isRoot bool) bool {
	if i == 0 || len(body) == 0 {
		return isRoot
	}
	prev := body[i-1]
	if prev == nil {
		return isRoot
	}
	content, ok := prev.(*ast.ContentStatement)
	if !ok {
		return false
	}
	sibling := i-2 >= 0
	if !sibling && isRoot {
		return prevWhitespaceRoot.MatchString(content.Original)
	}
	return prevWhitespace.MatchString(content.Original)
}

// isNextWhitespace reports whether the text after body[i] starts with a
// blank line. An index of -1 asks about the start of body.
func isNextWhitespace(body []ast.Stmt, i int, isRoot bool) bool {
	if i+1 >= len(body) {
		return isRoot
	}
	next := body[i+1]
	content, ok := next.(*ast.ContentStatement)
	if !ok {
		return false
	}
	sibling := i+2 < len(body)
	if !sibling && isRoot {
		return nextWhitespaceRoot.MatchString(content.Original)
	}
	return nextWhitespace.MatchString(content.Original)
}

// omitRight strips leading whitespace from the content after body[i]. With
// multiple set all whitespace goes; otherwise only the rest of one line.
func omitRight(body []ast.Stmt, i int, multiple bool) {
	if i+1 >= len(body) || i+1 < 0 {
		return
	}
	current, ok := body[i+1].(*ast.ContentStatement)
	if !ok || (!multiple && current.RightStripped) {
		return
	}
	original := current.Value
	if multiple {
		current.Value = leadingSpace.ReplaceAllString(current.Value, "")
	} else {
		current.Value = leadingLine.ReplaceAllString(current.Value, "")
	}
	current.RightStripped = current.Value != original
}

// omitLeft strips trailing whitespace from the content before body[i] and
// reports whether anything was removed.
func omitLeft(body []ast.Stmt, i int, multiple bool) bool {
	if i-1 < 0 || i-1 >= len(body) {
		return false
	}
	current, ok := body[i-1].(*ast.ContentStatement)
	if !ok || (!multiple && current.LeftStripped) {
		return false
	}
	original := current.Value
	if multiple {
		current.Value = trailingSpace.ReplaceAllString(current.Value, "")
	} else {
		current.Value = trailingIndent.ReplaceAllString(current.Value, "")
	}
	current.LeftStripped = current.Value != original
	return current.LeftStripped
}
