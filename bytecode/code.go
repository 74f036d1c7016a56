package bytecode

import "github.com/deepnoodle-ai/hbs/op"

// Code is one compiled program body: the main template, a block body or a
// decorator stream. It is immutable after creation and safe for concurrent use.
type Code struct {
	name string

	instructions []op.Code
	constants    []any
	names        []string
	paths        [][]string

	// Source map: one location per instruction word for error reporting
	locations []SourceLocation

	// Operations registering this body's decorators, or nil
	decorators *Code

	blockParams int
	isSimple    bool
}

// CodeParams contains parameters for creating a new Code.
type CodeParams struct {
	Name         string
	Instructions []op.Code
	Constants    []any
	Names        []string
	Paths        [][]string
	Locations    []SourceLocation
	Decorators   *Code
	BlockParams  int
	IsSimple     bool
}

// NewCode creates a new immutable Code from the given parameters.
// Input slices are copied to ensure immutability.
func NewCode(params CodeParams) *Code {
	return &Code{
		name:         params.Name,
		instructions: copyInstructions(params.Instructions),
		constants:    copyAny(params.Constants),
		names:        copyStrings(params.Names),
		paths:        copyPaths(params.Paths),
		locations:    copyLocations(params.Locations),
		decorators:   params.Decorators,
		blockParams:  params.BlockParams,
		isSimple:     params.IsSimple,
	}
}

// Name returns the name of this code block.
func (c *Code) Name() string {
	return c.name
}

// InstructionCount returns the number of instruction words.
func (c *Code) InstructionCount() int {
	return len(c.instructions)
}

// InstructionAt returns the instruction word at the given index.
func (c *Code) InstructionAt(index int) op.Code {
	return c.instructions[index]
}

// ConstantCount returns the number of constants.
func (c *Code) ConstantCount() int {
	return len(c.constants)
}

// ConstantAt returns the constant at the given index.
func (c *Code) ConstantAt(index int) any {
	return c.constants[index]
}

// NameCount returns the number of names (helpers, partials, decorators).
func (c *Code) NameCount() int {
	return len(c.names)
}

// NameAt returns the name at the given index.
func (c *Code) NameAt(index int) string {
	return c.names[index]
}

// PathCount returns the number of lookup paths.
func (c *Code) PathCount() int {
	return len(c.paths)
}

// PathAt returns the lookup path at the given index. The returned slice
// must not be modified.
func (c *Code) PathAt(index int) []string {
	return c.paths[index]
}

// LocationAt returns the source location for the instruction at the given index.
func (c *Code) LocationAt(ip int) SourceLocation {
	if ip < 0 || ip >= len(c.locations) {
		return SourceLocation{}
	}
	return c.locations[ip]
}

// LocationCount returns the number of recorded source locations.
func (c *Code) LocationCount() int {
	return len(c.locations)
}

// Decorators returns the decorator stream of this body, or nil.
func (c *Code) Decorators() *Code {
	return c.decorators
}

// BlockParams returns the number of block parameters the body declares.
func (c *Code) BlockParams() int {
	return c.blockParams
}

// IsSimple reports whether the body consists of a single statement.
func (c *Code) IsSimple() bool {
	return c.isSimple
}

func (c *Code) stats(s *Stats) {
	s.InstructionCount += c.InstructionCount()
	s.ConstantCount += c.ConstantCount()
	if c.decorators != nil {
		s.DecoratorCount++
		s.InstructionCount += c.decorators.InstructionCount()
		s.ConstantCount += c.decorators.ConstantCount()
	}
}
