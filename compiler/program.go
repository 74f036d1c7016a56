package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/deepnoodle-ai/hbs/errors"
	"github.com/deepnoodle-ai/hbs/op"
)

// NoChild is the PushProgram argument meaning "no program".
const NoChild = -1

// Opcode is one compiled operation. Args hold plain Go values: strings, ints,
// bools, []string, [2]int, nil or a literal value.
type Opcode struct {
	Code op.Code
	Args []any
	Loc  errors.SourceLocation
}

func (o Opcode) String() string {
	if len(o.Args) == 0 {
		return o.Code.String()
	}
	args := make([]string, len(o.Args))
	for i, arg := range o.Args {
		if s, ok := arg.(string); ok {
			args[i] = fmt.Sprintf("%q", s)
		} else {
			args[i] = fmt.Sprintf("%v", arg)
		}
	}
	return o.Code.String() + " " + strings.Join(args, " ")
}

// Program is the compiled form of one template body: the main template, a
// block's program or inverse, or a partial block.
type Program struct {
	Opcodes []Opcode
	// Decorators holds the operations that register the decorators declared
	// directly in this body. They run before the body does.
	Decorators []Opcode
	Children   []*Program

	// BlockParams is the number of block parameters the body declares.
	BlockParams int
	// IsSimple is set when the body has exactly one statement.
	IsSimple bool

	UseDepths     bool
	UsePartial    bool
	UseDecorators bool
}

// Equals reports whether p and other compile to the same code: the same
// operations with equal arguments and equal children. Locations are ignored.
func (p *Program) Equals(other *Program) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	if !opcodesEqual(p.Opcodes, other.Opcodes) || !opcodesEqual(p.Decorators, other.Decorators) {
		return false
	}
	if len(p.Children) != len(other.Children) {
		return false
	}
	for i, child := range p.Children {
		if !child.Equals(other.Children[i]) {
			return false
		}
	}
	return p.BlockParams == other.BlockParams
}

func opcodesEqual(a, b []Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Code != b[i].Code || !reflect.DeepEqual(a[i].Args, b[i].Args) {
			return false
		}
	}
	return true
}
