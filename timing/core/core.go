// Package core runs the out-of-order pipeline as an akita ticking
// component.
//
// The core ticks once per clock cycle on an akita engine until the pipeline
// halts or fails. Observers attach through akita hooks: HookPosCycle fires
// after every cycle with a pipeline.Snapshot and HookPosCommit fires for
// every committed instruction with a pipeline.CommitEvent.
package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// HookPosCycle marks the end of a simulated cycle.
var HookPosCycle = &sim.HookPos{Name: "Cycle"}

// HookPosCommit marks an instruction leaving the reorder buffer.
var HookPosCommit = &sim.HookPos{Name: "Commit"}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated, excluding the halting
	// tick.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// Stalls is the number of stall events of any kind.
	Stalls uint64
	// Flushes is the number of misprediction flushes.
	Flushes uint64
	// Squashed is the number of instructions discarded by flushes.
	Squashed uint64
}

// Core is a Tomasulo core driven by an akita engine.
type Core struct {
	*sim.TickingComponent

	// Pipeline is the underlying out-of-order pipeline.
	Pipeline *pipeline.Pipeline

	engine sim.Engine
	err    error
}

// NewCore creates a core named name that runs program against memory,
// ticking at freq on engine.
func NewCore(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	program pipeline.InstructionSource,
	memory *emu.Memory,
	opts ...pipeline.PipelineOption,
) (*Core, error) {
	c := &Core{engine: engine}

	opts = append(opts, pipeline.WithCommitHook(c.onCommit))
	p, err := pipeline.NewPipeline(program, memory, opts...)
	if err != nil {
		return nil, err
	}
	c.Pipeline = p
	c.TickingComponent = sim.NewTickingComponent(name, engine, freq, c)

	return c, nil
}

// Tick executes one pipeline cycle. It returns false once the pipeline has
// halted, which stops the engine from scheduling further ticks.
func (c *Core) Tick() bool {
	if c.Pipeline.Halted() {
		return false
	}

	if err := c.Pipeline.Tick(); err != nil {
		c.err = err
		return false
	}

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosCycle,
			Item:   c.Pipeline.Snapshot(),
		})
	}

	return !c.Pipeline.Halted()
}

func (c *Core) onCommit(event pipeline.CommitEvent) {
	if c.TickingComponent == nil || c.NumHooks() == 0 {
		return
	}
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCommit,
		Item:   event,
	})
}

// Run schedules the first tick and runs the engine until the core halts.
// It returns the error that stopped the pipeline, if any.
func (c *Core) Run() error {
	c.TickLater()

	if err := c.engine.Run(); err != nil {
		return err
	}
	return c.err
}

// RunCycles ticks the core directly, without the engine, for up to cycles
// cycles. Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles; i++ {
		if !c.Tick() {
			break
		}
	}
	return !c.Halted(), c.err
}

// Halted returns true once the pipeline has drained or failed.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Err returns the error that stopped the pipeline, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	s := c.Pipeline.Stats()
	return Stats{
		Cycles:       s.Cycles,
		Instructions: s.Instructions,
		Stalls:       s.TotalStalls(),
		Flushes:      s.Flushes,
		Squashed:     s.Squashed,
	}
}
