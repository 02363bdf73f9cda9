// Package pipeline provides a cycle-stepped out-of-order core built on
// Tomasulo's algorithm.
//
// Each cycle runs fetch, rename, dispatch, execute, writeback and commit.
// Architectural registers are renamed onto a physical register file, issue
// waits in per-class reservation stations, results travel on a
// width-limited common data bus, and a reorder buffer commits in program
// order. A mispredicted branch flushes everything younger than itself.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// InstructionSource supplies instruction text by byte address. Consecutive
// instructions are 4 bytes apart and branch targets are byte addresses.
type InstructionSource interface {
	At(pc int64) (string, bool)
}

// CommitEvent describes one committed instruction.
type CommitEvent struct {
	Cycle  uint64
	InstID uint64
	Slot   int
	PC     int64
	Text   string
	Op     insts.Op
	Reg    PhysReg
	Value  float64
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithConfig sets the widths and capacities.
func WithConfig(config Config) PipelineOption {
	return func(p *Pipeline) {
		p.config = config
	}
}

// WithLatencyTable sets a custom latency table for instruction timing and
// reservation-station sizing.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithLogger sets the logger for stage events.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithCommitHook registers a function called for every committed
// instruction, in commit order.
func WithCommitHook(hook func(CommitEvent)) PipelineOption {
	return func(p *Pipeline) {
		p.commitHooks = append(p.commitHooks, hook)
	}
}

type fetchedInst struct {
	pc   int64
	text string
}

type renamedInst struct {
	id   uint64
	pc   int64
	inst *insts.Instruction

	// src1 and src2 are NoReg for literal operands, held in imm1 and imm2.
	src1, src2 PhysReg
	imm1, imm2 float64
	dest       PhysReg

	prediction Prediction
}

// Pipeline is the out-of-order core.
type Pipeline struct {
	config       Config
	latencyTable *latency.Table
	logger       *slog.Logger
	commitHooks  []func(CommitEvent)

	program InstructionSource
	memory  *emu.Memory
	decoder *insts.Decoder

	regs     *RegisterFile
	freeList *FreeList
	rat      *AliasTable
	rob      *ReorderBuffer
	stations [insts.NumClasses]*ReservationStation
	units    []*FunctionalUnit
	unitFor  [insts.NumClasses]*FunctionalUnit
	bus      *CommonDataBus

	branchPredictor *BranchPredictor

	pc          int64
	cycle       uint64
	nextID      uint64
	decodeQueue []fetchedInst
	instQueue   []*renamedInst

	stats  Statistics
	halted bool
	err    error
}

// NewPipeline creates a core that runs program against memory. Committed
// stores mutate memory in place.
func NewPipeline(program InstructionSource, memory *emu.Memory, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		config:  DefaultConfig(),
		program: program,
		memory:  memory,
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if p.latencyTable == nil {
		p.latencyTable = latency.NewTable()
	}
	if err := p.latencyTable.Config().Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.memory == nil {
		p.memory = emu.NewMemory(0)
	}

	p.regs = NewRegisterFile(p.config.PhysicalRegisters)
	p.freeList = NewFreeList(p.config.PhysicalRegisters)
	p.rat = NewAliasTable()
	p.rob = NewReorderBuffer(p.config.ROBSize)
	p.bus = NewCommonDataBus(p.config.CDBWidth)
	p.branchPredictor = NewBranchPredictor(p.config.BranchPrediction)

	for _, class := range insts.Classes() {
		p.stations[class] = NewReservationStation(class, p.latencyTable.StationSize(class))
	}
	p.buildUnits()

	return p, nil
}

// buildUnits creates one unit per class, with loads and stores sharing one.
func (p *Pipeline) buildUnits() {
	for _, class := range insts.Classes() {
		switch class {
		case insts.ClassStore:
			p.unitFor[class] = p.unitFor[insts.ClassLoad]
			continue
		case insts.ClassLoad:
			p.unitFor[class] = NewFunctionalUnit("LoadStore")
		default:
			p.unitFor[class] = NewFunctionalUnit(class.String())
		}
		p.units = append(p.units, p.unitFor[class])
	}
}

// PC returns the next fetch address.
func (p *Pipeline) PC() int64 {
	return p.pc
}

// Cycle returns the number of cycles completed. The tick that finds the
// core drained halts without being counted.
func (p *Pipeline) Cycle() uint64 {
	return p.cycle
}

// Config returns the core configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// LatencyTable returns the latency table.
func (p *Pipeline) LatencyTable() *latency.Table {
	return p.latencyTable
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// BranchPredictor returns the branch predictor.
func (p *Pipeline) BranchPredictor() *BranchPredictor {
	return p.branchPredictor
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	s := p.stats
	bp := p.branchPredictor.Stats()
	s.BranchPredictions = bp.Predictions
	s.BranchCorrect = bp.Correct
	s.BranchMispredictions = bp.Mispredictions
	return s
}

// Halted returns true once the program has drained or the run failed.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Err returns the error that stopped the run, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Run executes the pipeline until it halts.
func (p *Pipeline) Run() error {
	for !p.halted {
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.halted, nil
}

// Tick executes one cycle.
//
// Fetch runs every cycle. The core halts when nothing was fetched and no
// instruction is queued or in flight. Otherwise rename, dispatch and
// execute run from cycle 1, writeback from cycle 2, and commit always.
// Stages communicate only through the structures they leave behind, so a
// result reaches consumers one cycle after it is broadcast.
func (p *Pipeline) Tick() error {
	if p.halted {
		return p.err
	}

	if err := p.tick(); err != nil {
		p.halted = true
		p.err = err
		p.logger.Error("run aborted", "cycle", p.cycle, "err", err)
		return err
	}
	return nil
}

func (p *Pipeline) tick() error {
	if p.config.MaxCycles > 0 && p.cycle >= p.config.MaxCycles {
		return fmt.Errorf("cycle %d: %w", p.cycle, ErrMaxCycles)
	}

	p.fetch()

	if len(p.decodeQueue) == 0 && len(p.instQueue) == 0 && p.rob.Empty() {
		p.halted = true
		p.logger.Debug("halt", "cycle", p.cycle)
		return nil
	}

	if p.cycle > 0 {
		if err := p.rename(); err != nil {
			return err
		}
		if err := p.dispatch(); err != nil {
			return err
		}
		if err := p.execute(); err != nil {
			return err
		}
	}

	if p.cycle > 1 {
		p.writeback()
	}

	if err := p.commit(); err != nil {
		return err
	}

	p.cycle++
	p.stats.Cycles = p.cycle
	return nil
}
