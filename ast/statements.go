package ast

import "strings"

// MustacheStatement is a "{{expr}}" or "{{{expr}}}" output statement.
type MustacheStatement struct {
	Span
	Path    Expr
	Params  []Expr
	Hash    *Hash
	Escaped bool
	Strip   StripFlags
}

func (s *MustacheStatement) stmtNode() {}

func (s *MustacheStatement) String() string {
	if s.Escaped {
		return "{{" + callString(s.Path, s.Params, s.Hash) + "}}"
	}
	return "{{{" + callString(s.Path, s.Params, s.Hash) + "}}}"
}

// Decorator is a "{{* name}}" statement.
type Decorator struct {
	Span
	Path   Expr
	Params []Expr
	Hash   *Hash
	Strip  StripFlags
}

func (s *Decorator) stmtNode() {}

func (s *Decorator) String() string {
	return "{{*" + callString(s.Path, s.Params, s.Hash) + "}}"
}

// BlockStatement is a "{{#name}}...{{else}}...{{/name}}" section. Inverted
// sections ("{{^name}}") are represented with only an Inverse program.
type BlockStatement struct {
	Span
	Path         Expr
	Params       []Expr
	Hash         *Hash
	Program      *Program
	Inverse      *Program
	OpenStrip    StripFlags
	InverseStrip StripFlags
	CloseStrip   StripFlags
}

func (s *BlockStatement) stmtNode() {}

func (s *BlockStatement) String() string {
	var b strings.Builder
	b.WriteString("{{#")
	b.WriteString(callString(s.Path, s.Params, s.Hash))
	writeBlockParams(&b, s.Program)
	b.WriteString("}}")
	if s.Program != nil {
		b.WriteString(s.Program.String())
	}
	if s.Inverse != nil {
		b.WriteString("{{else}}")
		b.WriteString(s.Inverse.String())
	}
	b.WriteString("{{/")
	b.WriteString(s.Path.String())
	b.WriteString("}}")
	return b.String()
}

// DecoratorBlock is a "{{#* name}}...{{/name}}" block.
type DecoratorBlock struct {
	Span
	Path       Expr
	Params     []Expr
	Hash       *Hash
	Program    *Program
	OpenStrip  StripFlags
	CloseStrip StripFlags
}

func (s *DecoratorBlock) stmtNode() {}

func (s *DecoratorBlock) String() string {
	return "{{#*" + callString(s.Path, s.Params, s.Hash) + "}}" +
		s.Program.String() + "{{/" + s.Path.String() + "}}"
}

// PartialStatement is a "{{> name}}" statement.
type PartialStatement struct {
	Span
	Name   Expr
	Params []Expr
	Hash   *Hash
	// Indent is the whitespace preceding a standalone partial.
	Indent string
	Strip  StripFlags
}

func (s *PartialStatement) stmtNode() {}

func (s *PartialStatement) String() string {
	return "{{>" + callString(s.Name, s.Params, s.Hash) + "}}"
}

// PartialBlockStatement is a "{{#> name}}default{{/name}}" block.
type PartialBlockStatement struct {
	Span
	Name       Expr
	Params     []Expr
	Hash       *Hash
	Program    *Program
	OpenStrip  StripFlags
	CloseStrip StripFlags
}

func (s *PartialBlockStatement) stmtNode() {}

func (s *PartialBlockStatement) String() string {
	return "{{#>" + callString(s.Name, s.Params, s.Hash) + "}}" +
		s.Program.String() + "{{/" + s.Name.String() + "}}"
}

// ContentStatement is literal template text. Original keeps the text as
// written; Value is what remains after whitespace control.
type ContentStatement struct {
	Span
	Value         string
	Original      string
	RightStripped bool
	LeftStripped  bool
}

func (s *ContentStatement) stmtNode() {}

func (s *ContentStatement) String() string { return s.Value }

// CommentStatement is a "{{! ...}}" or "{{!-- ... --}}" comment.
type CommentStatement struct {
	Span
	Value string
	Strip StripFlags
}

func (s *CommentStatement) stmtNode() {}

func (s *CommentStatement) String() string { return "{{!" + s.Value + "}}" }

func callString(path Expr, params []Expr, hash *Hash) string {
	var b strings.Builder
	if path != nil {
		b.WriteString(path.String())
	}
	for _, p := range params {
		b.WriteByte(' ')
		b.WriteString(p.String())
	}
	if hash != nil && len(hash.Pairs) > 0 {
		b.WriteByte(' ')
		b.WriteString(hash.String())
	}
	return b.String()
}

func writeBlockParams(b *strings.Builder, p *Program) {
	if p == nil || len(p.BlockParams) == 0 {
		return
	}
	b.WriteString(" as |")
	b.WriteString(strings.Join(p.BlockParams, " "))
	b.WriteString("|")
}
