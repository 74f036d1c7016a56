// Package dis disassembles compiled templates for debugging. It works with
// the opcodes defined in the op package and the InstructionIter of the
// bytecode package.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/compiler"
	"github.com/deepnoodle-ai/hbs/internal/table"
	"github.com/deepnoodle-ai/hbs/op"
)

// Instruction represents a single bytecode instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []op.Code
	Annotation string
	Constant   any
}

// Disassemble returns a parsed representation of the given code.
func Disassemble(code *bytecode.Code) ([]Instruction, error) {
	var instructions []Instruction
	var offset int
	iter := bytecode.NewInstructionIter(code)
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		info := op.GetInfo(val[0])
		if info.Name == "" {
			return nil, fmt.Errorf("unknown opcode %d at offset %d", val[0], offset)
		}
		if len(val)-1 != info.OperandCount {
			return nil, fmt.Errorf("truncated %s at offset %d", info.Name, offset)
		}
		instr := Instruction{
			Offset:   offset,
			Name:     info.Name,
			Opcode:   val[0],
			Operands: val[1:],
		}
		if err := annotate(code, &instr); err != nil {
			return nil, err
		}
		instructions = append(instructions, instr)
		offset += len(val)
	}
	return instructions, nil
}

func annotate(code *bytecode.Code, instr *Instruction) error {
	args := instr.Operands
	var err error
	switch instr.Opcode {
	case op.AppendContent, op.LoadConst:
		instr.Constant, err = constant(code, int(args[0]))
	case op.PushContext:
		instr.Annotation = fmt.Sprintf("depth %d", args[0])
	case op.LookupOnContext, op.LookupData:
		var path string
		if path, err = pathName(code, int(args[1])); err == nil {
			prefix := ""
			if instr.Opcode == op.LookupData {
				prefix = "@"
			}
			instr.Annotation = fmt.Sprintf("%s%s depth=%d %s", prefix, path, args[0], op.LookupFlag(args[2]))
		}
	case op.LookupBlockParam:
		var path string
		if path, err = pathName(code, int(args[2])); err == nil {
			instr.Annotation = fmt.Sprintf("[%d,%d] %s %s", args[0], args[1], path, op.LookupFlag(args[3]))
		}
	case op.PushProgram:
		if args[0] == op.NoProgram {
			instr.Annotation = "none"
		} else {
			instr.Annotation = fmt.Sprintf("program %d", args[0])
		}
	case op.EmptyHash:
		if args[0] == 1 {
			instr.Annotation = "omitted"
		}
	case op.BuildHash:
		var keys string
		if keys, err = pathName(code, int(args[0])); err == nil {
			instr.Annotation = "keys " + keys
		}
	case op.InvokeHelper:
		instr.Annotation, err = name(code, int(args[1]))
		if err == nil && args[2] == 1 {
			instr.Annotation += " (simple)"
		}
	case op.InvokeKnownHelper, op.RegisterDecorator:
		instr.Annotation, err = name(code, int(args[1]))
	case op.InvokeAmbiguous, op.BlockValue:
		instr.Annotation, err = name(code, int(args[0]))
	case op.InvokePartial:
		if args[0] == 1 {
			instr.Annotation = "(dynamic)"
		} else {
			instr.Annotation, err = name(code, int(args[1]))
		}
		if err == nil {
			var indent any
			if indent, err = constant(code, int(args[2])); err == nil && indent != "" {
				instr.Annotation += fmt.Sprintf(" indent=%q", indent)
			}
		}
	}
	return err
}

// Print writes a table of the given instructions to w.
func Print(instructions []Instruction, w io.Writer) {
	var lines [][]string
	for _, instr := range instructions {
		values := []string{
			fmt.Sprintf("%d", instr.Offset),
			color.New(color.Bold).Sprint(instr.Name),
			formatOperands(instr.Operands),
		}
		switch c := instr.Constant.(type) {
		case nil:
			if instr.Annotation == "" {
				values = append(values, "")
			} else {
				values = append(values, color.CyanString("%s", instr.Annotation))
			}
		case string:
			if len(c) > 60 {
				c = c[:57] + "..."
			}
			values = append(values, color.GreenString("%q", c))
		case int64, float64:
			values = append(values, color.YellowString("%v", c))
		default:
			values = append(values, fmt.Sprintf("%v", c))
		}
		lines = append(lines, values)
	}

	table.NewTable(w).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

// PrintTemplate writes every code object of tmpl, main first, each under a
// heading naming it, followed by a summary of the template's size.
func PrintTemplate(tmpl *bytecode.Template, w io.Writer) error {
	for _, code := range tmpl.Codes() {
		instructions, err := Disassemble(code)
		if err != nil {
			return fmt.Errorf("%s: %w", code.Name(), err)
		}
		fmt.Fprintf(w, "%s:\n", code.Name())
		Print(instructions, w)
		if dec := code.Decorators(); dec != nil {
			instructions, err := Disassemble(dec)
			if err != nil {
				return fmt.Errorf("%s decorators: %w", code.Name(), err)
			}
			fmt.Fprintf(w, "%s decorators:\n", code.Name())
			Print(instructions, w)
		}
	}
	PrintStats(tmpl.Stats(), w)
	return nil
}

// PrintStats writes a one line summary of s.
func PrintStats(s bytecode.Stats, w io.Writer) {
	fmt.Fprintf(w, "%d instructions, %d constants, %d programs, %d decorators, %d source bytes\n",
		s.InstructionCount, s.ConstantCount, s.ProgramCount, s.DecoratorCount, s.SourceBytes)
}

// PrintProgram writes the opcode program produced by the compiler, one
// operation per line, with child programs indented below their parent.
func PrintProgram(p *compiler.Program, w io.Writer) {
	printProgram(p, w, "", "main")
}

func printProgram(p *compiler.Program, w io.Writer, indent, label string) {
	fmt.Fprintf(w, "%s%s:", indent, label)
	if p.BlockParams > 0 {
		fmt.Fprintf(w, " params=%d", p.BlockParams)
	}
	if p.IsSimple {
		fmt.Fprint(w, " simple")
	}
	fmt.Fprintln(w)
	for _, o := range p.Decorators {
		fmt.Fprintf(w, "%s  * %s\n", indent, o)
	}
	for _, o := range p.Opcodes {
		fmt.Fprintf(w, "%s  %s\n", indent, o)
	}
	for i, child := range p.Children {
		printProgram(child, w, indent+"  ", fmt.Sprintf("program %d", i))
	}
}

func formatOperands(ops []op.Code) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = fmt.Sprintf("%d", o)
	}
	return strings.Join(parts, ", ")
}

func constant(code *bytecode.Code, index int) (any, error) {
	if code.ConstantCount() <= index {
		return nil, fmt.Errorf("constant index out of range: %d", index)
	}
	return code.ConstantAt(index), nil
}

func name(code *bytecode.Code, index int) (string, error) {
	if code.NameCount() <= index {
		return "", fmt.Errorf("name index out of range: %d", index)
	}
	return code.NameAt(index), nil
}

func pathName(code *bytecode.Code, index int) (string, error) {
	if code.PathCount() <= index {
		return "", fmt.Errorf("path index out of range: %d", index)
	}
	path := code.PathAt(index)
	if len(path) == 0 {
		return "this", nil
	}
	return strings.Join(path, "."), nil
}
