package bytecode

// Stats contains statistics about a compiled template.
type Stats struct {
	// InstructionCount is the total number of instruction words across the
	// main program, every child program and every decorator stream.
	InstructionCount int

	// ConstantCount is the total number of constants.
	ConstantCount int

	// ProgramCount is the number of child programs, after deduplication.
	ProgramCount int

	// DecoratorCount is the number of programs that register decorators.
	DecoratorCount int

	// SourceBytes is the size of the template source in bytes.
	SourceBytes int
}
