package bytecode

import (
	"fmt"

	"github.com/deepnoodle-ai/hbs/op"
)

type operandKind int

const (
	plain operandKind = iota
	constRef
	stringRef
	nameRef
	pathRef
	programRef
)

// operandKinds lists, per opcode, the operands that index into a table.
var operandKinds = map[op.Code][]operandKind{
	op.AppendContent:     {stringRef},
	op.LoadConst:         {constRef},
	op.LookupOnContext:   {plain, pathRef, plain},
	op.LookupBlockParam:  {plain, plain, pathRef, plain},
	op.LookupData:        {plain, pathRef, plain},
	op.PushProgram:       {programRef},
	op.BuildHash:         {pathRef},
	op.InvokeHelper:      {plain, nameRef, plain},
	op.InvokeKnownHelper: {plain, nameRef},
	op.InvokeAmbiguous:   {nameRef, plain},
	op.BlockValue:        {nameRef},
	op.InvokePartial:     {plain, nameRef, stringRef},
	op.RegisterDecorator: {plain, nameRef},
}

// Validate checks that every instruction of the template is executable:
// opcodes are known to the VM, operands are complete and table references
// are in range. Loaded artifacts are validated before they can render.
func Validate(t *Template) error {
	for _, code := range t.Codes() {
		for c := code; c != nil; c = c.Decorators() {
			if err := validateCode(c, t.ProgramCount()); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCode(c *Code, programs int) error {
	for ip := 0; ip < c.InstructionCount(); {
		opcode := c.InstructionAt(ip)
		info := op.GetInfo(opcode)
		if info.Name == "" || info.CompilerOnly {
			return fmt.Errorf("%s: invalid opcode %d at offset %d", c.Name(), opcode, ip)
		}
		if ip+info.OperandCount >= c.InstructionCount() {
			return fmt.Errorf("%s: truncated %s at offset %d", c.Name(), info.Name, ip)
		}
		for j, kind := range operandKinds[opcode] {
			idx := int(c.InstructionAt(ip + 1 + j))
			if err := checkOperand(c, kind, idx, programs); err != nil {
				return fmt.Errorf("%s: %s at offset %d: %w", c.Name(), info.Name, ip, err)
			}
		}
		ip += 1 + info.OperandCount
	}
	return nil
}

func checkOperand(c *Code, kind operandKind, idx, programs int) error {
	switch kind {
	case constRef, stringRef:
		if idx >= c.ConstantCount() {
			return fmt.Errorf("constant index %d out of range", idx)
		}
		if _, ok := c.ConstantAt(idx).(string); kind == stringRef && !ok {
			return fmt.Errorf("constant %d is not a string", idx)
		}
	case nameRef:
		if idx >= c.NameCount() {
			return fmt.Errorf("name index %d out of range", idx)
		}
	case pathRef:
		if idx >= c.PathCount() {
			return fmt.Errorf("path index %d out of range", idx)
		}
	case programRef:
		if idx != op.NoProgram && idx >= programs {
			return fmt.Errorf("program index %d out of range", idx)
		}
	}
	return nil
}
