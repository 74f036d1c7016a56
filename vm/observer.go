package vm

import (
	"github.com/deepnoodle-ai/hbs/bytecode"
	"github.com/deepnoodle-ai/hbs/op"
)

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction.
	// Use for: detailed tracing, instruction-level debugging.
	StepAll StepMode = iota

	// StepNone never calls OnStep.
	// Use for: profilers that only need Call/Return events.
	StepNone

	// StepSampled calls OnStep every N instructions.
	StepSampled

	// StepOnLine calls OnStep when the source line changes.
	// Use for: template coverage.
	StepOnLine
)

// ObserverConfig specifies what events an observer wants to receive.
// Use NewObserverConfig() to create configs with safe defaults.
type ObserverConfig struct {
	// StepMode controls OnStep callback frequency.
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	// ObserveCalls enables OnCall callbacks.
	ObserveCalls bool

	// ObserveReturns enables OnReturn callbacks.
	ObserveReturns bool
}

// NewObserverConfig creates a config with safe defaults.
// ObserveCalls and ObserveReturns default to true.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// NormalizeConfig validates and clamps config values.
func NormalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// Observer receives render events. It can be used for tracing, template
// coverage or profiling helpers and partials.
//
// Observer methods are called synchronously during rendering.
// Implementations can embed NoOpObserver for methods they don't need.
type Observer interface {
	// Config returns the observer's configuration.
	// Called once when the render starts.
	Config() ObserverConfig

	// OnStep is called based on the StepMode in the observer's config.
	// Returns false to halt rendering immediately.
	OnStep(event StepEvent) bool

	// OnCall is called before a helper, partial or decorator runs.
	// Returns false to halt rendering immediately.
	OnCall(event CallEvent) bool

	// OnReturn is called after a helper, partial or decorator returns.
	// Returns false to halt rendering immediately.
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes a single instruction step.
type StepEvent struct {
	// Program is the name of the program being executed ("main",
	// "program0", "main_d", ...).
	Program string

	// IP is the instruction pointer.
	IP int

	Opcode     op.Code
	OpcodeName string

	Location bytecode.SourceLocation

	// StackDepth is the current depth of the operand stack.
	StackDepth int
}

// CallKind is the kind of invocation reported to OnCall and OnReturn.
type CallKind string

const (
	CallHelper    CallKind = "helper"
	CallPartial   CallKind = "partial"
	CallDecorator CallKind = "decorator"
)

// CallEvent describes a helper, partial or decorator invocation.
type CallEvent struct {
	Kind     CallKind
	Name     string
	ArgCount int
	Location bytecode.SourceLocation

	// Depth is the partial nesting depth of the call.
	Depth int
}

// ReturnEvent describes the end of an invocation.
type ReturnEvent struct {
	Kind     CallKind
	Name     string
	Location bytecode.SourceLocation
	Depth    int
	Failed   bool
}

// NoOpObserver is an Observer that does nothing. It reports every
// instruction and every call.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig {
	return NewObserverConfig(StepAll)
}

func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
