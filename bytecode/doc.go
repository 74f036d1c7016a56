// Package bytecode provides immutable representations of compiled templates.
//
// This package defines the output of code generation: pure data structures
// that are created once and shared safely across goroutines and renders.
//
// # Key Types
//
//   - [Template]: a compiled template, with its main program, the table of
//     child programs, the compile options and the compiler revision
//   - [Code]: one program body with its instructions, constants, names,
//     lookup paths and optional decorator stream
//   - [SourceLocation]: maps instructions to template positions
//
// # Immutability Guarantees
//
// All fields are unexported and constructors copy their input slices.
// Collections are reached by index:
//
//	code.InstructionAt(0)
//	code.ConstantAt(i)
//	tmpl.ProgramAt(j)
//
// # Revisions
//
// Every template records the [CompilerRevision] that produced it. The
// runtime refuses templates outside [LastCompatibleRevision] and
// [CompilerRevision]. [Marshal] and [Unmarshal] convert templates to and
// from JSON, and [PeekRevision] reads the revision of a payload without
// decoding the rest of it.
package bytecode
