// Package op defines opcodes used by the template compiler and virtual machine.
//
// The compiler emits every opcode in this package. The code generator lowers
// the "compiler only" opcodes (GetContext, PushString, PushLiteral and the
// hash builders) into the instructions the virtual machine executes, so those
// never appear in a bytecode stream.
package op

// Code is an integer opcode that indicates an operation to execute.
type Code uint16

const (
	Invalid Code = 0

	// Output
	AppendContent Code = 1
	Append        Code = 2
	AppendEscaped Code = 3

	// Context and paths
	GetContext            Code = 10
	PushContext           Code = 11
	LookupOnContext       Code = 12
	LookupBlockParam      Code = 13
	LookupData            Code = 14
	ResolvePossibleLambda Code = 15

	// Values
	PushString  Code = 20
	PushLiteral Code = 21
	LoadConst   Code = 22
	Nil         Code = 23
	PushProgram Code = 24

	// Hashes
	EmptyHash    Code = 30
	PushHash     Code = 31
	AssignToHash Code = 32
	PopHash      Code = 33
	BuildHash    Code = 34

	// Invocation
	InvokeHelper        Code = 40
	InvokeKnownHelper   Code = 41
	InvokeAmbiguous     Code = 42
	BlockValue          Code = 43
	AmbiguousBlockValue Code = 44
	InvokePartial       Code = 45
	RegisterDecorator   Code = 46
)

// NoProgram is the PushProgram operand meaning "no program".
const NoProgram = 0xFFFF

// LookupFlag modifies how a path lookup treats missing values.
type LookupFlag uint16

const (
	// Falsy lookups stop at the first missing segment and yield nil.
	Falsy LookupFlag = 1 << iota
	// RequireTerminal makes a missing final segment an error (strict mode).
	RequireTerminal
	// Scoped lookups start at "this" or "./" and skip depth resolution.
	Scoped
	// Depthed lookups search every ancestor context for the first segment
	// (compat mode).
	Depthed
	// Assume lookups treat every intermediate value as an object and fail on
	// nil parents (strict and assumeObjects modes).
	Assume
)

// Has reports whether all bits of o are set in f.
func (f LookupFlag) Has(o LookupFlag) bool {
	return f&o == o
}

func (f LookupFlag) String() string {
	names := []struct {
		flag LookupFlag
		name string
	}{
		{Falsy, "falsy"},
		{RequireTerminal, "terminal"},
		{Scoped, "scoped"},
		{Depthed, "depthed"},
		{Assume, "assume"},
	}
	var out string
	for _, n := range names {
		if f.Has(n.flag) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "-"
	}
	return out
}

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
	// CompilerOnly opcodes exist in opcode programs but are lowered away by
	// the code generator.
	CompilerOnly bool
}

var infos = make([]Info, 64)

func init() {
	type opInfo struct {
		op           Code
		name         string
		count        int
		compilerOnly bool
	}
	ops := []opInfo{
		{AmbiguousBlockValue, "AMBIGUOUS_BLOCK_VALUE", 0, false},
		{Append, "APPEND", 0, false},
		{AppendContent, "APPEND_CONTENT", 1, false},
		{AppendEscaped, "APPEND_ESCAPED", 0, false},
		{AssignToHash, "ASSIGN_TO_HASH", 0, true},
		{BlockValue, "BLOCK_VALUE", 1, false},
		{BuildHash, "BUILD_HASH", 1, false},
		{EmptyHash, "EMPTY_HASH", 1, false},
		{GetContext, "GET_CONTEXT", 0, true},
		{InvokeAmbiguous, "INVOKE_AMBIGUOUS", 2, false},
		{InvokeHelper, "INVOKE_HELPER", 3, false},
		{InvokeKnownHelper, "INVOKE_KNOWN_HELPER", 2, false},
		{InvokePartial, "INVOKE_PARTIAL", 3, false},
		{LoadConst, "LOAD_CONST", 1, false},
		{LookupBlockParam, "LOOKUP_BLOCK_PARAM", 4, false},
		{LookupData, "LOOKUP_DATA", 3, false},
		{LookupOnContext, "LOOKUP_ON_CONTEXT", 3, false},
		{Nil, "NIL", 0, false},
		{PopHash, "POP_HASH", 0, true},
		{PushContext, "PUSH_CONTEXT", 1, false},
		{PushHash, "PUSH_HASH", 0, true},
		{PushLiteral, "PUSH_LITERAL", 0, true},
		{PushProgram, "PUSH_PROGRAM", 1, false},
		{PushString, "PUSH_STRING", 0, true},
		{RegisterDecorator, "REGISTER_DECORATOR", 2, false},
		{ResolvePossibleLambda, "RESOLVE_POSSIBLE_LAMBDA", 0, false},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Name:         o.name,
			Code:         o.op,
			OperandCount: o.count,
			CompilerOnly: o.compilerOnly,
		}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(op Code) Info {
	if int(op) >= len(infos) {
		return Info{}
	}
	return infos[op]
}

func (c Code) String() string {
	if name := GetInfo(c).Name; name != "" {
		return name
	}
	return "INVALID"
}
