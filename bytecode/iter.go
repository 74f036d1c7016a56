package bytecode

import "github.com/deepnoodle-ai/hbs/op"

// InstructionIter iterates over instructions in a Code object.
type InstructionIter struct {
	code *Code
	pos  int
}

// Next returns the next instruction and its operands.
// Returns false when there are no more instructions. An instruction cut off
// by the end of the code has fewer operands than its opcode declares.
func (i *InstructionIter) Next() ([]op.Code, bool) {
	if i.pos >= i.code.InstructionCount() {
		return nil, false
	}
	opcode := i.code.InstructionAt(i.pos)
	i.pos++

	info := op.GetInfo(opcode)
	if info.OperandCount == 0 {
		return []op.Code{opcode}, true
	}
	instr := make([]op.Code, info.OperandCount+1)
	instr[0] = opcode

	n := 0
	for ; n < info.OperandCount && i.pos < i.code.InstructionCount(); n++ {
		instr[n+1] = i.code.InstructionAt(i.pos)
		i.pos++
	}
	// A truncated instruction is returned with only the operands present.
	return instr[:n+1], true
}

// Offset returns the index of the next instruction to be returned.
func (i *InstructionIter) Offset() int {
	return i.pos
}

// All returns all instructions as a newly allocated slice.
func (i *InstructionIter) All() [][]op.Code {
	var results [][]op.Code
	for {
		instr, ok := i.Next()
		if !ok {
			break
		}
		results = append(results, instr)
	}
	return results
}

// NewInstructionIter creates a new instruction iterator for the given code.
func NewInstructionIter(code *Code) *InstructionIter {
	return &InstructionIter{code: code}
}
