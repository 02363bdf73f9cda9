package pipeline

import (
	"fmt"
)

// writeback walks the ROB in slot order. Entries that completed last cycle
// become ReadyForWriteBack; entries already ReadyForWriteBack broadcast
// while the bus has room. The first entry that finds the bus full stops
// the stage.
func (p *Pipeline) writeback() {
	for i := 0; i < p.rob.Capacity(); i++ {
		e := p.rob.Entry(i)
		if !e.Busy {
			continue
		}

		switch e.State {
		case ROBExecutionComplete:
			e.State = ROBReadyForWriteBack
		case ROBReadyForWriteBack:
			if !p.bus.Broadcast(CDBMessage{ROBTag: e.Slot, Reg: e.Reg, Value: e.Value}) {
				p.countStall(CDBFull)
				return
			}
			e.State = ROBWriteBack
			p.logger.Debug("writeback", "cycle", p.cycle, "inst", e.Text, "rob", e.Slot)
		}
	}
}

// commit retires ROB heads in WriteBack state while the bus has room.
func (p *Pipeline) commit() error {
	for {
		head := p.rob.HeadEntry()
		if !head.Busy || head.State != ROBWriteBack || p.bus.Full() {
			return nil
		}

		if head.Op.IsBranch() {
			if err := p.resolveBranch(head); err != nil {
				return err
			}
		}

		if head.Op.IsStore() {
			if err := p.memory.Write(head.Address, head.Value); err != nil {
				return fmt.Errorf("cycle %d: commit %q: %w", p.cycle, head.Text, err)
			}
		}

		p.rob.advanceHead()
		head.State = ROBCommitted
		head.Busy = false

		if head.Reg != NoReg {
			value := p.regs.Get(head.Reg).Value
			p.bus.Broadcast(CDBMessage{ROBTag: head.Slot, Reg: head.Reg, Value: value})
			if err := p.retire(head); err != nil {
				return err
			}
		}

		p.stats.Instructions++
		p.logger.Debug("commit", "cycle", p.cycle, "pc", head.PC, "inst", head.Text,
			"rob", head.Slot, "id", head.InstID)

		event := CommitEvent{
			Cycle:  p.cycle,
			InstID: head.InstID,
			Slot:   head.Slot,
			PC:     head.PC,
			Text:   head.Text,
			Op:     head.Op,
			Reg:    head.Reg,
			Value:  head.Value,
		}
		for _, hook := range p.commitHooks {
			hook(event)
		}
	}
}

// retire makes head's register the architectural binding of its name and
// frees every older binding of that name.
func (p *Pipeline) retire(head *ROBEntry) error {
	chain := p.rat.Chain(head.Dest)

	idx := -1
	for i, reg := range chain {
		if reg == head.Reg {
			idx = i
			break
		}
	}
	if idx < 0 {
		return p.invariantf("committing %q: %v is not bound to %s", head.Text, head.Reg, head.Dest)
	}

	for _, old := range chain[:idx] {
		if p.regs.Get(old).Busy {
			return p.invariantf("committing %q: older binding %v of %s is still busy",
				head.Text, old, head.Dest)
		}
		p.rat.Remove(head.Dest, old)
		if err := p.freeList.Push(old); err != nil {
			return p.invariantf("committing %q: %v", head.Text, err)
		}
	}

	reg := p.regs.Get(head.Reg)
	reg.Busy = false
	reg.ROBTag = NoROBTag
	return nil
}

// resolveBranch checks a committing branch against its prediction and
// rolls back on a mismatch.
func (p *Pipeline) resolveBranch(head *ROBEntry) error {
	if !p.branchPredictor.Update(head.Prediction, head.Taken) {
		return nil
	}

	redirect := head.PC + instructionStride
	if head.Taken {
		redirect = head.Target
	}

	p.logger.Debug("mispredict", "cycle", p.cycle, "pc", head.PC, "taken", head.Taken,
		"redirect", redirect)

	if err := p.flush(); err != nil {
		return err
	}
	p.pc = redirect
	return nil
}

// flush discards every instruction younger than the ROB head: the ROB
// entries behind it, all station and unit state, the bus, and both
// front-end queues. Their destination registers return to the free list.
func (p *Pipeline) flush() error {
	err := p.rob.squashAfterHead(func(e *ROBEntry) error {
		p.stats.Squashed++
		if e.Reg == NoReg {
			return nil
		}
		return p.release(e.Dest, e.Reg)
	})
	if err != nil {
		return err
	}

	for _, rs := range p.stations {
		rs.Reset()
	}
	for _, fu := range p.units {
		fu.Reset()
	}
	p.bus.Clear()

	p.stats.Squashed += uint64(len(p.instQueue))
	for _, r := range p.instQueue {
		if r.dest == NoReg {
			continue
		}
		if err := p.release(r.inst.Dest, r.dest); err != nil {
			return err
		}
	}
	p.instQueue = nil
	p.decodeQueue = nil

	p.stats.Flushes++
	p.logger.Debug("flush", "cycle", p.cycle, "free", p.freeList.Len())
	return nil
}

// release unbinds a squashed destination register and frees it.
func (p *Pipeline) release(name string, reg PhysReg) error {
	if !p.rat.Remove(name, reg) {
		return p.invariantf("flushing %v: not bound to %s", reg, name)
	}

	r := p.regs.Get(reg)
	r.Busy = false
	r.ROBTag = NoROBTag

	if err := p.freeList.Push(reg); err != nil {
		return p.invariantf("flushing: %v", err)
	}
	return nil
}
