package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(LookupOnContext)
	require.Equal(t, "LOOKUP_ON_CONTEXT", info.Name)
	require.Equal(t, 3, info.OperandCount)
	require.Equal(t, LookupOnContext, info.Code)
	require.False(t, info.CompilerOnly)
}

func TestGetInfoAllOpcodes(t *testing.T) {
	tests := []struct {
		code         Code
		name         string
		operands     int
		compilerOnly bool
	}{
		{AppendContent, "APPEND_CONTENT", 1, false},
		{Append, "APPEND", 0, false},
		{AppendEscaped, "APPEND_ESCAPED", 0, false},
		{GetContext, "GET_CONTEXT", 0, true},
		{PushContext, "PUSH_CONTEXT", 1, false},
		{LookupOnContext, "LOOKUP_ON_CONTEXT", 3, false},
		{LookupBlockParam, "LOOKUP_BLOCK_PARAM", 4, false},
		{LookupData, "LOOKUP_DATA", 3, false},
		{ResolvePossibleLambda, "RESOLVE_POSSIBLE_LAMBDA", 0, false},
		{PushString, "PUSH_STRING", 0, true},
		{PushLiteral, "PUSH_LITERAL", 0, true},
		{LoadConst, "LOAD_CONST", 1, false},
		{Nil, "NIL", 0, false},
		{PushProgram, "PUSH_PROGRAM", 1, false},
		{EmptyHash, "EMPTY_HASH", 1, false},
		{PushHash, "PUSH_HASH", 0, true},
		{AssignToHash, "ASSIGN_TO_HASH", 0, true},
		{PopHash, "POP_HASH", 0, true},
		{BuildHash, "BUILD_HASH", 1, false},
		{InvokeHelper, "INVOKE_HELPER", 3, false},
		{InvokeKnownHelper, "INVOKE_KNOWN_HELPER", 2, false},
		{InvokeAmbiguous, "INVOKE_AMBIGUOUS", 2, false},
		{BlockValue, "BLOCK_VALUE", 1, false},
		{AmbiguousBlockValue, "AMBIGUOUS_BLOCK_VALUE", 0, false},
		{InvokePartial, "INVOKE_PARTIAL", 3, false},
		{RegisterDecorator, "REGISTER_DECORATOR", 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.code)
			require.Equal(t, tt.name, info.Name)
			require.Equal(t, tt.operands, info.OperandCount)
			require.Equal(t, tt.code, info.Code)
			require.Equal(t, tt.compilerOnly, info.CompilerOnly)
			require.Equal(t, tt.name, tt.code.String())
		})
	}
}

func TestUnknownOpcode(t *testing.T) {
	require.Equal(t, Info{}, GetInfo(Code(999)))
	require.Equal(t, "INVALID", Code(999).String())
	require.Equal(t, "INVALID", Invalid.String())
}

func TestLookupFlag(t *testing.T) {
	f := Falsy | Scoped
	require.True(t, f.Has(Falsy))
	require.True(t, f.Has(Scoped))
	require.False(t, f.Has(RequireTerminal))
	require.Equal(t, "falsy|scoped", f.String())
	require.Equal(t, "-", LookupFlag(0).String())
	require.Equal(t, "terminal|assume", (RequireTerminal | Assume).String())
}
