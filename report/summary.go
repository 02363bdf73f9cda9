package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xlab/treeprint"

	"github.com/sarchlab/tomasim/timing/pipeline"
)

// memoryStride is the address step used when listing memory.
const memoryStride = 8

// Summary is the end-of-run state of one simulation.
type Summary struct {
	Program   string
	Stats     pipeline.Statistics
	Registers map[string]float64
	Memory    []float64
	// Verified is nil when the run was not checked against the functional
	// emulator.
	Verified *bool
}

// NewSummary collects the end-of-run state of p.
func NewSummary(program string, p *pipeline.Pipeline) Summary {
	return Summary{
		Program:   program,
		Stats:     p.Stats(),
		Registers: p.ArchitectedRegisters(),
		Memory:    p.Memory().Snapshot(),
	}
}

// Tree renders the summary as a tree.
func (s Summary) Tree() treeprint.Tree {
	tree := treeprint.NewWithRoot(s.Program)

	st := s.Stats
	perf := tree.AddBranch("performance")
	perf.AddMetaNode("cycles", st.Cycles)
	perf.AddMetaNode("committed", st.Instructions)
	perf.AddMetaNode("fetched", st.Fetched)
	perf.AddMetaNode("dispatched", st.Dispatched)
	perf.AddMetaNode("squashed", st.Squashed)
	perf.AddMetaNode("IPC", fmt.Sprintf("%.3f", st.IPC()))
	perf.AddMetaNode("CPI", fmt.Sprintf("%.3f", st.CPI()))

	stalls := tree.AddMetaBranch("stalls", st.TotalStalls())
	for _, reason := range []pipeline.StallReason{
		pipeline.NoFreePhysicalRegister,
		pipeline.NoFreeROBSlot,
		pipeline.NoFreeReservationStation,
		pipeline.CDBFull,
	} {
		stalls.AddMetaNode(reason.String(), st.Stalls(reason))
	}

	branches := tree.AddBranch("branches")
	branches.AddMetaNode("predictions", st.BranchPredictions)
	branches.AddMetaNode("correct", st.BranchCorrect)
	branches.AddMetaNode("mispredictions", st.BranchMispredictions)
	branches.AddMetaNode("flushes", st.Flushes)

	regs := tree.AddBranch("registers")
	names := make([]string, 0, len(s.Registers))
	for name := range s.Registers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		regs.AddMetaNode(name, s.Registers[name])
	}

	mem := tree.AddMetaBranch("memory", fmt.Sprintf("%d words", len(s.Memory)))
	for addr := 0; addr < len(s.Memory); addr += memoryStride {
		mem.AddMetaNode(addr, s.Memory[addr])
	}

	if s.Verified != nil {
		status := "MISMATCH"
		if *s.Verified {
			status = "ok"
		}
		tree.AddMetaNode("verify", status)
	}

	return tree
}

// WriteSummary writes the summary tree to w.
func WriteSummary(w io.Writer, s Summary) error {
	_, err := io.WriteString(w, s.Tree().String())
	return err
}
