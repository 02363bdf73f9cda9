package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("FreeList", func() {
	var fl *pipeline.FreeList

	BeforeEach(func() {
		fl = pipeline.NewFreeList(4)
	})

	It("should hand out registers in FIFO order", func() {
		r, ok := fl.Pop()
		Expect(ok).To(BeTrue())
		Expect(r).To(Equal(pipeline.PhysReg(0)))

		Expect(fl.Push(r)).To(Succeed())
		Expect(fl.Snapshot()).To(Equal([]pipeline.PhysReg{1, 2, 3, 0}))
	})

	It("should report exhaustion", func() {
		for i := 0; i < 4; i++ {
			_, ok := fl.Pop()
			Expect(ok).To(BeTrue())
		}
		r, ok := fl.Pop()
		Expect(ok).To(BeFalse())
		Expect(r).To(Equal(pipeline.NoReg))
		Expect(fl.Len()).To(BeZero())
	})

	It("should reject double frees and unknown registers", func() {
		Expect(fl.Push(2)).To(MatchError(ContainSubstring("freed twice")))
		Expect(fl.Push(9)).To(MatchError(ContainSubstring("out of range")))
	})

	It("should track membership", func() {
		r, _ := fl.Pop()
		Expect(fl.Contains(r)).To(BeFalse())
		Expect(fl.Contains(1)).To(BeTrue())
		Expect(fl.Contains(pipeline.NoReg)).To(BeFalse())
	})
})

var _ = Describe("AliasTable", func() {
	var rat *pipeline.AliasTable

	BeforeEach(func() {
		rat = pipeline.NewAliasTable()
	})

	It("should make the newest binding current", func() {
		_, ok := rat.Current("R1")
		Expect(ok).To(BeFalse())

		rat.Push("R1", 3)
		rat.Push("R1", 7)
		cur, ok := rat.Current("R1")
		Expect(ok).To(BeTrue())
		Expect(cur).To(Equal(pipeline.PhysReg(7)))
		Expect(rat.Chain("R1")).To(Equal([]pipeline.PhysReg{3, 7}))
	})

	It("should remove bindings from anywhere in the chain", func() {
		rat.Push("F0", 1)
		rat.Push("F0", 2)
		rat.Push("F0", 3)

		Expect(rat.Remove("F0", 2)).To(BeTrue())
		Expect(rat.Chain("F0")).To(Equal([]pipeline.PhysReg{1, 3}))
		Expect(rat.Remove("F0", 2)).To(BeFalse())
	})

	It("should not expose its chains", func() {
		rat.Push("R1", 1)
		chain := rat.Chain("R1")
		chain[0] = 99
		Expect(rat.Chain("R1")).To(Equal([]pipeline.PhysReg{1}))
	})

	It("should list only names with live bindings", func() {
		rat.Push("R2", 1)
		rat.Push("F1", 2)
		rat.Push("R1", 3)
		rat.Remove("F1", 2)
		Expect(rat.Names()).To(Equal([]string{"R1", "R2"}))
		Expect(rat.Snapshot()).To(HaveLen(2))
	})
})

var _ = Describe("RegisterFile", func() {
	It("should start with idle zero-valued registers", func() {
		rf := pipeline.NewRegisterFile(3)
		Expect(rf.Len()).To(Equal(3))
		for i := 0; i < 3; i++ {
			r := rf.Get(pipeline.PhysReg(i))
			Expect(r.Tag).To(Equal(pipeline.PhysReg(i)))
			Expect(r.Busy).To(BeFalse())
			Expect(r.Value).To(BeZero())
			Expect(r.ROBTag).To(Equal(pipeline.NoROBTag))
		}
		Expect(pipeline.PhysReg(2).String()).To(Equal("p2"))
		Expect(pipeline.NoReg.String()).To(Equal("-"))
	})
})

var _ = Describe("CommonDataBus", func() {
	It("should never exceed its width", func() {
		bus := pipeline.NewCommonDataBus(2)
		Expect(bus.Broadcast(pipeline.CDBMessage{ROBTag: 0, Reg: 1, Value: 1})).To(BeTrue())
		Expect(bus.Broadcast(pipeline.CDBMessage{ROBTag: 1, Reg: 2, Value: 2})).To(BeTrue())
		Expect(bus.Full()).To(BeTrue())
		Expect(bus.Broadcast(pipeline.CDBMessage{ROBTag: 2, Reg: 3, Value: 3})).To(BeFalse())
		Expect(bus.Len()).To(Equal(2))

		bus.Clear()
		Expect(bus.Len()).To(BeZero())
		Expect(bus.Messages()).To(BeEmpty())
	})
})

var _ = Describe("ReservationStation", func() {
	var (
		rs  *pipeline.ReservationStation
		bus *pipeline.CommonDataBus
	)

	BeforeEach(func() {
		rs = pipeline.NewReservationStation(insts.ClassFPAdd, 2)
		bus = pipeline.NewCommonDataBus(4)
	})

	It("should allocate the first free slot", func() {
		a := rs.Allocate()
		b := rs.Allocate()
		Expect(a.Slot).To(Equal(0))
		Expect(b.Slot).To(Equal(1))
		Expect(rs.Allocate()).To(BeNil())
		Expect(rs.Busy()).To(Equal(2))

		rs.Release(0)
		Expect(rs.Allocate().Slot).To(Equal(0))
		Expect(rs.Name()).To(Equal("FPadd"))
	})

	It("should capture results from the matching producer only", func() {
		e := rs.Allocate()
		e.Src1 = pipeline.Operand{Waiting: true, ROBTag: 3, Reg: 5}
		e.Src2 = pipeline.Operand{Value: 2, ROBTag: pipeline.NoROBTag, Reg: pipeline.NoReg}

		bus.Broadcast(pipeline.CDBMessage{ROBTag: 3, Reg: 6, Value: 9})
		rs.Snoop(bus)
		Expect(rs.Entry(0).Ready).To(BeFalse())
		Expect(rs.FirstReady()).To(Equal(-1))

		bus.Broadcast(pipeline.CDBMessage{ROBTag: 3, Reg: 5, Value: 4.5})
		rs.Snoop(bus)
		Expect(rs.Entry(0).Ready).To(BeTrue())
		Expect(rs.Entry(0).Src1.Value).To(Equal(4.5))
		Expect(rs.Entry(0).Src1.Waiting).To(BeFalse())
		Expect(rs.FirstReady()).To(Equal(0))
	})

	It("should reset every slot", func() {
		rs.Allocate()
		rs.Allocate()
		rs.Reset()
		Expect(rs.Busy()).To(BeZero())
		for _, e := range rs.Snapshot() {
			Expect(e.ROBTag).To(Equal(pipeline.NoROBTag))
		}
	})
})

var _ = Describe("ReorderBuffer", func() {
	It("should keep one slot free", func() {
		rob := pipeline.NewReorderBuffer(3)
		Expect(rob.Capacity()).To(Equal(3))
		Expect(rob.Empty()).To(BeTrue())

		first := rob.Allocate()
		Expect(first).NotTo(BeNil())
		Expect(first.Name()).To(Equal("ROB0"))
		Expect(first.State).To(Equal(pipeline.ROBDispatched))
		Expect(rob.Allocate()).NotTo(BeNil())
		Expect(rob.Available()).To(BeFalse())
		Expect(rob.Allocate()).To(BeNil())
		Expect(rob.Len()).To(Equal(2))
		Expect(rob.Empty()).To(BeFalse())
		Expect(rob.HeadEntry()).To(BeIdenticalTo(first))
	})

	It("should name every state", func() {
		Expect(pipeline.ROBReadyForWriteBack.String()).To(Equal("ReadyForWriteBack"))
		Expect(pipeline.ROBCommitted.String()).To(Equal("Committed"))
	})
})
