package emu

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/tomasim/insts"
)

// InstructionSource supplies instruction text by byte address. Instructions
// are laid out with a stride of 4 bytes.
type InstructionSource interface {
	At(pc int64) (string, bool)
}

// ErrMaxInstructions is returned when the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once the PC runs past the end of the program.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes instructions one at a time, in program order, with no
// timing. Its final state is the reference an out-of-order run must match.
type Emulator struct {
	program InstructionSource
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	pc               int64
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithRegFile sets the initial architectural register file.
func WithRegFile(rf *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = rf
	}
}

// NewEmulator creates an emulator over program and memory. The memory is
// mutated in place by stores.
func NewEmulator(program InstructionSource, memory *Memory, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		program: program,
		regFile: NewRegFile(),
		memory:  memory,
		decoder: insts.NewDecoder(),
	}
	if e.memory == nil {
		e.memory = NewMemory(0)
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the address of the next instruction.
func (e *Emulator) PC() int64 {
	return e.pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	text, ok := e.program.At(e.pc)
	if !ok {
		return StepResult{Halted: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	inst, err := e.decoder.Decode(text)
	if err != nil {
		return StepResult{Err: fmt.Errorf("pc %d: %w", e.pc, err)}
	}

	if err := e.execute(inst); err != nil {
		return StepResult{Err: fmt.Errorf("pc %d: %s: %w", e.pc, inst.Text, err)}
	}

	e.instructionCount++
	return StepResult{}
}

// Run executes instructions until the program ends or an error occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

func (e *Emulator) execute(inst *insts.Instruction) error {
	a, err := e.operand(inst.Src1)
	if err != nil {
		return err
	}
	b, err := e.operand(inst.Src2)
	if err != nil {
		return err
	}

	switch {
	case inst.Op.IsBranch():
		return e.executeBranch(inst, a, b)
	case inst.Op.IsStore():
		if err := e.executeStore(inst, a, b); err != nil {
			return err
		}
	case inst.Op.IsLoad():
		addr := int64(inst.Op.Evaluate(a, b))
		// Out-of-range loads read 0, as in the timing core.
		v, _ := e.memory.Read(addr)
		e.regFile.WriteReg(inst.Dest, v)
	default:
		e.regFile.WriteReg(inst.Dest, inst.Op.Evaluate(a, b))
	}

	e.pc += 4
	return nil
}

func (e *Emulator) executeBranch(inst *insts.Instruction, a, b float64) error {
	if inst.Op.Evaluate(a, b) == 0 {
		e.pc += 4
		return nil
	}
	target, err := inst.Target()
	if err != nil {
		return err
	}
	e.pc = target
	return nil
}

func (e *Emulator) executeStore(inst *insts.Instruction, value, base float64) error {
	offset, err := inst.Target()
	if err != nil {
		return err
	}
	addr := int64(math.Trunc(base)) + offset
	return e.memory.Write(addr, value)
}

func (e *Emulator) operand(tok string) (float64, error) {
	if insts.IsRegister(tok) {
		return e.regFile.ReadReg(tok), nil
	}
	return insts.ParseImmediate(tok)
}
