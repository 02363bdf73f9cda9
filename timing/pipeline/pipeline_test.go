package pipeline_test

import (
	"bytes"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// source is an instruction source that skips label resolution.
type source []string

func (s source) At(pc int64) (string, bool) {
	if pc < 0 || pc%4 != 0 || pc/4 >= int64(len(s)) {
		return "", false
	}
	return s[pc/4], true
}

var loopProgram = []string{
	"addi R1, R0, 3",
	"addi R2, R0, 100",
	"loop: fld F0, 0(R2)",
	"fadd F1, F1, F0",
	"addi R1, R1, -1",
	"bne R1, R0, loop",
	"fsd F1, 0(R2)",
}

func loopMemory() *emu.Memory {
	mem := emu.NewMemory(101)
	Expect(mem.Write(100, 2)).To(Succeed())
	return mem
}

func newPipeline(
	prog pipeline.InstructionSource,
	mem *emu.Memory,
	opts ...pipeline.PipelineOption,
) *pipeline.Pipeline {
	p, err := pipeline.NewPipeline(prog, mem, opts...)
	Expect(err).NotTo(HaveOccurred())
	return p
}

func robState(p *pipeline.Pipeline, slot int) pipeline.ROBState {
	return p.Snapshot().ROB[slot].State
}

// expectMatchesEmulator runs the program functionally and checks that the
// core committed the same architectural state.
func expectMatchesEmulator(p *pipeline.Pipeline, prog pipeline.InstructionSource, mem *emu.Memory) {
	e := emu.NewEmulator(prog, mem)
	Expect(e.Run()).To(Succeed())

	arch := p.ArchitectedRegisters()
	for name, want := range e.RegFile().Values() {
		Expect(arch).To(HaveKeyWithValue(name, want), "register %s", name)
	}
	for name, got := range arch {
		if _, ok := e.RegFile().Lookup(name); !ok {
			Expect(got).To(BeZero(), "register %s only seen on a squashed path", name)
		}
	}
	Expect(p.Memory().Snapshot()).To(Equal(e.Memory().Snapshot()))
}

var _ = Describe("Pipeline", func() {
	Describe("construction", func() {
		It("should reject an invalid core config", func() {
			cfg := pipeline.DefaultConfig()
			cfg.ROBSize = 1
			_, err := pipeline.NewPipeline(source{}, nil, pipeline.WithConfig(cfg))
			Expect(err).To(MatchError(ContainSubstring("rob size")))
		})

		It("should reject an invalid timing config", func() {
			cfg := latency.DefaultTimingConfig()
			cfg.FPMulLatency = 0
			_, err := pipeline.NewPipeline(source{}, nil,
				pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg)))
			Expect(err).To(MatchError(ContainSubstring("invalid timing config")))
		})

		It("should size stations from the latency table", func() {
			p := newPipeline(source{}, nil)
			snap := p.Snapshot()
			Expect(snap.Stations).To(HaveLen(int(insts.NumClasses)))
			Expect(snap.Stations[insts.ClassFPMul].Entries).To(HaveLen(4))
			Expect(snap.Units).To(HaveLen(int(insts.NumClasses) - 1))
			Expect(snap.FreeList).To(HaveLen(32))
		})

		It("should halt immediately on an empty program", func() {
			p := newPipeline(source{}, nil)
			Expect(p.Run()).To(Succeed())
			Expect(p.Halted()).To(BeTrue())
			Expect(p.Stats().Cycles).To(BeZero())
		})
	})

	Describe("a single instruction", func() {
		var p *pipeline.Pipeline

		BeforeEach(func() {
			cfg := pipeline.DefaultConfig()
			cfg.ROBSize = 4
			p = newPipeline(source{"addi R1, R0, 5"}, nil, pipeline.WithConfig(cfg))
		})

		It("should move through every ROB state", func() {
			Expect(p.Tick()).To(Succeed())
			Expect(p.Snapshot().DecodeQueue).To(Equal([]string{"addi R1, R0, 5"}))

			Expect(p.Tick()).To(Succeed())
			Expect(robState(p, 0)).To(Equal(pipeline.ROBExecutionComplete))

			Expect(p.Tick()).To(Succeed())
			Expect(robState(p, 0)).To(Equal(pipeline.ROBReadyForWriteBack))

			Expect(p.Tick()).To(Succeed())
			Expect(robState(p, 0)).To(Equal(pipeline.ROBCommitted))
			Expect(p.Snapshot().CDB).To(HaveLen(2))
		})

		It("should commit the result and halt", func() {
			Expect(p.Run()).To(Succeed())

			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(4)))
			Expect(stats.Instructions).To(Equal(uint64(1)))
			Expect(stats.TotalStalls()).To(BeZero())
			Expect(stats.CPI()).To(Equal(4.0))
			Expect(p.ArchitectedRegisters()).To(Equal(map[string]float64{"R0": 0, "R1": 5}))
			Expect(p.Snapshot().FreeList).To(HaveLen(30))
		})

		It("should accept any register naming", func() {
			p := newPipeline(source{"addi p1, p0, 5"}, nil)
			Expect(p.Run()).To(Succeed())
			Expect(p.ArchitectedRegisters()).To(Equal(map[string]float64{"p0": 0, "p1": 5}))
			Expect(p.Stats().TotalStalls()).To(BeZero())
		})

		It("should not count the halting tick", func() {
			ticks := 0
			for !p.Halted() {
				Expect(p.Tick()).To(Succeed())
				ticks++
			}
			Expect(ticks).To(Equal(5))
			Expect(p.Cycle()).To(Equal(uint64(4)))
			Expect(p.Stats().Cycles).To(Equal(uint64(4)))
		})

		It("should ignore ticks after halting", func() {
			Expect(p.Run()).To(Succeed())
			Expect(p.Tick()).To(Succeed())
			Expect(p.Cycle()).To(Equal(uint64(4)))
		})
	})

	Describe("the shared load/store unit", func() {
		var mem *emu.Memory

		BeforeEach(func() {
			mem = emu.NewMemoryFrom([]float64{1.5, 0, 0, 0, 9, 0, 0, 0, 4.5})
		})

		It("should run the older load first when both are ready", func() {
			p := newPipeline(source{"fld F0, 0(R1)", "fsd F2, 4(R1)"}, mem)
			_, err := p.RunCycles(2)
			Expect(err).NotTo(HaveOccurred())

			Expect(robState(p, 0)).To(Equal(pipeline.ROBExecutionComplete))
			Expect(robState(p, 1)).To(Equal(pipeline.ROBDispatched))
		})

		It("should run the older store first when both are ready", func() {
			p := newPipeline(source{"fsd F2, 4(R1)", "fld F0, 0(R1)"}, mem)
			_, err := p.RunCycles(2)
			Expect(err).NotTo(HaveOccurred())

			Expect(robState(p, 0)).To(Equal(pipeline.ROBExecutionComplete))
			Expect(robState(p, 1)).To(Equal(pipeline.ROBDispatched))
		})

		It("should time the shared unit by the running opcode", func() {
			cfg := latency.DefaultTimingConfig()
			cfg.StoreLatency = 3
			p := newPipeline(source{"fsd F2, 4(R1)", "fld F0, 0(R1)"}, mem,
				pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg)))

			_, err := p.RunCycles(2)
			Expect(err).NotTo(HaveOccurred())

			var shared pipeline.FunctionalUnitState
			for _, u := range p.Snapshot().Units {
				if u.Name == "LoadStore" {
					shared = u
				}
			}
			Expect(shared.Busy).To(BeTrue())
			Expect(shared.Class).To(Equal(insts.ClassStore))
			Expect(shared.Latency).To(Equal(uint64(3)))
			Expect(shared.Text).To(Equal("fsd F2, 4(R1)"))
		})

		It("should let the first ready position decide", func() {
			prog := source{
				"fadd F6, F8, F8",
				"fld F0, 0(F6)",
				"fld F2, 8(R1)",
				"fsd F4, 4(R1)",
			}
			p := newPipeline(prog, mem)

			_, err := p.RunCycles(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(robState(p, 0)).To(Equal(pipeline.ROBExecuting))
			Expect(robState(p, 1)).To(Equal(pipeline.ROBDispatched))
			Expect(robState(p, 2)).To(Equal(pipeline.ROBDispatched))
			Expect(robState(p, 3)).To(Equal(pipeline.ROBExecutionComplete))

			_, err = p.RunCycles(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(robState(p, 1)).To(Equal(pipeline.ROBDispatched))
			Expect(robState(p, 2)).To(Equal(pipeline.ROBReadyForWriteBack))

			Expect(p.Run()).To(Succeed())
			arch := p.ArchitectedRegisters()
			Expect(arch).To(HaveKeyWithValue("F0", 1.5))
			Expect(arch).To(HaveKeyWithValue("F2", 4.5))
			Expect(p.Memory().Snapshot()[4]).To(BeZero())
		})

		It("should let loads behind a store to the same word read memory before commit", func() {
			shared := emu.NewMemoryFrom([]float64{7, 0})
			p := newPipeline(source{
				"addi R2, R0, 3",
				"fsd R2, 0(R1)",
				"fld F0, 0(R1)",
				"fld F2, 0(R1)",
			}, shared)

			Expect(p.Run()).To(Succeed())
			arch := p.ArchitectedRegisters()
			Expect(arch).To(HaveKeyWithValue("F0", 7.0))
			Expect(arch).To(HaveKeyWithValue("F2", 7.0))
			Expect(shared.Snapshot()).To(Equal([]float64{3, 0}))
		})

		It("should order interleaved loads and stores on one word", func() {
			shared := emu.NewMemoryFrom([]float64{7, 0})
			p := newPipeline(source{
				"addi R2, R0, 3",
				"fld F0, 0(R1)",
				"fsd R2, 0(R1)",
				"fld F2, 0(R1)",
				"fld F6, 0(R1)",
				"fsd F0, 1(R1)",
			}, shared)

			Expect(p.Run()).To(Succeed())
			arch := p.ArchitectedRegisters()
			Expect(arch).To(HaveKeyWithValue("F0", 7.0))
			Expect(arch).To(HaveKeyWithValue("F2", 7.0))
			Expect(arch).To(HaveKeyWithValue("F6", 7.0))
			Expect(shared.Snapshot()).To(Equal([]float64{3, 7}))
		})

		It("should read zero for loads beyond memory", func() {
			p := newPipeline(source{"addi R1, R0, 50", "fld F0, 0(R1)"}, mem)
			Expect(p.Run()).To(Succeed())
			Expect(p.ArchitectedRegisters()).To(HaveKeyWithValue("F0", 0.0))
		})
	})

	Describe("branch misprediction", func() {
		var (
			prog source
			p    *pipeline.Pipeline
		)

		BeforeEach(func() {
			prog = source{
				"addi R1, R0, 1",
				"bne R1, R0, 16",
				"addi R2, R0, 7",
				"addi R3, R0, 9",
				"addi R4, R0, 3",
			}
			cfg := pipeline.DefaultConfig()
			cfg.ROBSize = 8
			p = newPipeline(prog, nil, pipeline.WithConfig(cfg))
		})

		It("should flush the wrong path and redirect fetch", func() {
			for p.Stats().Flushes == 0 {
				Expect(p.Tick()).To(Succeed())
				Expect(p.Halted()).To(BeFalse())
			}

			Expect(p.Cycle()).To(Equal(uint64(6)))
			Expect(p.PC()).To(Equal(int64(16)))
			Expect(p.ROBOccupancy()).To(BeZero())

			snap := p.Snapshot()
			Expect(snap.FreeList).To(HaveLen(30))
			Expect(snap.AliasTable).NotTo(HaveKey("R2"))
			Expect(snap.AliasTable).NotTo(HaveKey("R3"))
			Expect(snap.AliasTable).NotTo(HaveKey("R4"))
			Expect(snap.DecodeQueue).To(BeEmpty())
			Expect(snap.InstructionQueue).To(BeEmpty())
			for _, st := range snap.Stations {
				for _, e := range st.Entries {
					Expect(e.Busy).To(BeFalse())
				}
			}
			for _, u := range snap.Units {
				Expect(u.Busy).To(BeFalse())
			}
		})

		It("should keep zero bindings created for wrong-path source names", func() {
			wrongPath := source{
				"addi R1, R0, 1",
				"bne R1, R0, 16",
				"fadd F2, F7, F7",
				"addi R3, R0, 9",
				"addi R4, R0, 3",
			}
			cfg := pipeline.DefaultConfig()
			cfg.ROBSize = 8
			p := newPipeline(wrongPath, nil, pipeline.WithConfig(cfg))

			for p.Stats().Flushes == 0 {
				Expect(p.Tick()).To(Succeed())
			}

			snap := p.Snapshot()
			Expect(snap.FreeList).To(HaveLen(29))
			Expect(snap.AliasTable).To(HaveKey("F7"))
			Expect(snap.AliasTable).NotTo(HaveKey("F2"))

			Expect(p.Run()).To(Succeed())
			Expect(p.ArchitectedRegisters()).To(Equal(map[string]float64{
				"R0": 0, "R1": 1, "R4": 3, "F7": 0,
			}))
		})

		It("should commit only the correct path", func() {
			Expect(p.Run()).To(Succeed())

			stats := p.Stats()
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.Instructions).To(Equal(uint64(3)))
			Expect(stats.Squashed).To(Equal(uint64(3)))
			Expect(stats.Fetched).To(Equal(uint64(6)))
			Expect(stats.BranchMispredictions).To(Equal(uint64(1)))
			Expect(p.ArchitectedRegisters()).To(Equal(map[string]float64{"R0": 0, "R1": 1, "R4": 3}))
			expectMatchesEmulator(p, prog, emu.NewMemory(0))
		})
	})

	DescribeTable("a counted loop",
		func(predict bool, mispredictions uint64) {
			prog := loader.MustProgram(loopProgram...)
			cfg := pipeline.DefaultConfig()
			cfg.BranchPrediction = predict
			p := newPipeline(prog, loopMemory(), pipeline.WithConfig(cfg))

			Expect(p.Run()).To(Succeed())
			Expect(p.ArchitectedRegisters()).To(HaveKeyWithValue("F1", 6.0))
			Expect(p.Memory().Snapshot()[100]).To(Equal(6.0))
			Expect(p.Stats().BranchMispredictions).To(Equal(mispredictions))
			Expect(p.Stats().Instructions).To(Equal(uint64(15)))
			expectMatchesEmulator(p, prog, loopMemory())
		},
		Entry("without prediction", false, uint64(2)),
		Entry("with prediction", true, uint64(2)),
	)

	Describe("stalls", func() {
		It("should count ROB stalls", func() {
			cfg := pipeline.DefaultConfig()
			cfg.ROBSize = 2
			prog := source{"addi R1, R0, 1", "addi R2, R0, 2", "addi R3, R0, 3"}
			p := newPipeline(prog, nil, pipeline.WithConfig(cfg))

			Expect(p.Run()).To(Succeed())
			Expect(p.Stats().ROBStalls).To(BeNumerically(">", 0))
			Expect(p.Stats().Stalls(pipeline.NoFreeROBSlot)).To(Equal(p.Stats().ROBStalls))
			expectMatchesEmulator(p, prog, emu.NewMemory(0))
		})

		It("should count reservation-station stalls", func() {
			tc := latency.DefaultTimingConfig()
			tc.FPDivStations = 1
			prog := source{"fdiv F1, F2, F3", "fdiv F4, F5, F6"}
			p := newPipeline(prog, nil,
				pipeline.WithLatencyTable(latency.NewTableWithConfig(tc)))

			Expect(p.Run()).To(Succeed())
			Expect(p.Stats().RSStalls).To(BeNumerically(">", 0))
			Expect(p.Stats().Instructions).To(Equal(uint64(2)))
		})

		It("should count CDB stalls", func() {
			cfg := pipeline.DefaultConfig()
			cfg.CDBWidth = 1
			prog := source{
				"addi R1, R0, 1",
				"addi R2, R0, 2",
				"addi R3, R0, 3",
				"addi R4, R0, 4",
			}
			p := newPipeline(prog, nil, pipeline.WithConfig(cfg))

			Expect(p.Run()).To(Succeed())
			Expect(p.Stats().CDBStalls).To(BeNumerically(">", 0))
			expectMatchesEmulator(p, prog, emu.NewMemory(0))
		})

		It("should count register stalls", func() {
			cfg := pipeline.DefaultConfig()
			cfg.PhysicalRegisters = 4
			prog := source{
				"addi R1, R0, 1",
				"addi R1, R0, 1",
				"addi R1, R0, 1",
				"addi R1, R0, 1",
				"addi R1, R0, 1",
			}
			p := newPipeline(prog, nil, pipeline.WithConfig(cfg))

			Expect(p.Run()).To(Succeed())
			Expect(p.Stats().RegisterStalls).To(BeNumerically(">", 0))
			Expect(p.Stats().Instructions).To(Equal(uint64(5)))
			Expect(p.ArchitectedRegisters()).To(HaveKeyWithValue("R1", 1.0))
		})
	})

	Describe("errors", func() {
		It("should fail when an instruction can never be renamed", func() {
			cfg := pipeline.DefaultConfig()
			cfg.PhysicalRegisters = 2
			p := newPipeline(source{"add R3, R1, R2"}, nil, pipeline.WithConfig(cfg))

			err := p.Run()
			Expect(errors.Is(err, pipeline.ErrOutOfRegisters)).To(BeTrue())
			Expect(p.Halted()).To(BeTrue())
			Expect(p.Err()).To(Equal(err))
		})

		It("should stop at the cycle limit", func() {
			cfg := pipeline.DefaultConfig()
			cfg.MaxCycles = 50
			prog := loader.MustProgram("loop: addi R1, R0, 1", "bne R1, R0, loop")
			p := newPipeline(prog, nil, pipeline.WithConfig(cfg))

			err := p.Run()
			Expect(errors.Is(err, pipeline.ErrMaxCycles)).To(BeTrue())
			Expect(p.Cycle()).To(Equal(uint64(50)))
		})

		It("should report undecodable instructions", func() {
			p := newPipeline(source{"mul R1, R2, R3"}, nil)

			err := p.Run()
			var decodeErr *insts.DecodeError
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Reason).To(ContainSubstring("unknown opcode"))
		})

		It("should fail a store that commits out of range", func() {
			p := newPipeline(source{"addi R1, R0, 100", "fsd F0, 0(R1)"}, emu.NewMemory(8))

			err := p.Run()
			Expect(errors.Is(err, emu.ErrAddressOutOfRange)).To(BeTrue())
		})
	})

	Describe("options", func() {
		It("should log stage events to the given logger", func() {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			p := newPipeline(source{"addi R1, R0, 5"}, nil, pipeline.WithLogger(logger))

			Expect(p.Run()).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("msg=commit"))
			Expect(buf.String()).To(ContainSubstring("msg=halt"))
		})

		It("should report commits in program order", func() {
			var events []pipeline.CommitEvent
			p := newPipeline(loader.MustProgram(loopProgram...), loopMemory(),
				pipeline.WithCommitHook(func(e pipeline.CommitEvent) {
					events = append(events, e)
				}))

			Expect(p.Run()).To(Succeed())
			Expect(events).To(HaveLen(15))
			Expect(events[0].Text).To(Equal("addi R1, R0, 3"))
			Expect(events[14].Op).To(Equal(insts.OpFSD))
			for i := 1; i < len(events); i++ {
				Expect(events[i].InstID).To(BeNumerically(">", events[i-1].InstID))
				Expect(events[i].Cycle).To(BeNumerically(">=", events[i-1].Cycle))
			}
		})
	})
})
