package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

type recordingHook struct {
	cycles  []pipeline.Snapshot
	commits []pipeline.CommitEvent
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case core.HookPosCycle:
		h.cycles = append(h.cycles, ctx.Item.(pipeline.Snapshot))
	case core.HookPosCommit:
		h.commits = append(h.commits, ctx.Item.(pipeline.CommitEvent))
	}
}

var _ = Describe("Core", func() {
	var (
		engine sim.Engine
		memory *emu.Memory
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		memory = emu.NewMemory(16)
	})

	newCore := func(opts ...pipeline.PipelineOption) *core.Core {
		prog := loader.MustProgram(
			"addi R1, R0, 4",
			"addi R2, R0, 6",
			"add R3, R1, R2",
			"fsd R3, 2(R1)",
		)
		c, err := core.NewCore("Core", engine, 1*sim.GHz, prog, memory, opts...)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("should create a core with pipeline", func() {
		c := newCore()
		Expect(c.Pipeline).NotTo(BeNil())
		Expect(c.Name()).To(Equal("Core"))
		Expect(c.Halted()).To(BeFalse())
	})

	It("should run to completion on the engine", func() {
		c := newCore()

		Expect(c.Run()).To(Succeed())
		Expect(c.Halted()).To(BeTrue())
		Expect(memory.Snapshot()[6]).To(Equal(10.0))

		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(4)))
		Expect(stats.Cycles).To(Equal(c.Pipeline.Cycle()))
		Expect(stats.Flushes).To(BeZero())
	})

	It("should run a bounded number of cycles", func() {
		c := newCore()

		running, err := c.RunCycles(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(running).To(BeTrue())
		Expect(c.Pipeline.Cycle()).To(Equal(uint64(3)))

		running, err = c.RunCycles(100)
		Expect(err).NotTo(HaveOccurred())
		Expect(running).To(BeFalse())
	})

	It("should report cycles and commits through hooks", func() {
		c := newCore()
		hook := &recordingHook{}
		c.AcceptHook(hook)

		Expect(c.Run()).To(Succeed())

		Expect(hook.cycles).To(HaveLen(int(c.Pipeline.Cycle()) + 1))
		Expect(hook.cycles[0].Cycle).To(Equal(uint64(1)))
		Expect(hook.commits).To(HaveLen(4))
		Expect(hook.commits[3].Text).To(Equal("fsd R3, 2(R1)"))
	})

	It("should surface pipeline errors from Run", func() {
		cfg := pipeline.DefaultConfig()
		cfg.MaxCycles = 2
		c := newCore(pipeline.WithConfig(cfg))

		err := c.Run()
		Expect(errors.Is(err, pipeline.ErrMaxCycles)).To(BeTrue())
		Expect(c.Err()).To(Equal(err))
	})

	It("should reject an invalid configuration", func() {
		cfg := pipeline.DefaultConfig()
		cfg.CDBWidth = 0
		prog := loader.MustProgram("addi R1, R0, 1")
		_, err := core.NewCore("Core", engine, 1*sim.GHz, prog, memory, pipeline.WithConfig(cfg))
		Expect(err).To(HaveOccurred())
	})
})
