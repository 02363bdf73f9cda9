package pipeline

// dispatch moves up to DispatchWidth renamed instructions into the ROB and
// their reservation stations, in program order.
//
// A full ROB holds back the current instruction and everything behind it. A
// full station holds back the current instruction; those dispatched earlier
// in the cycle keep their slots.
func (p *Pipeline) dispatch() error {
	for i := 0; i < p.config.DispatchWidth && len(p.instQueue) > 0; i++ {
		r := p.instQueue[0]

		if !p.rob.Available() {
			p.countStall(NoFreeROBSlot)
			return nil
		}

		rs := p.stations[r.inst.Op.Class()]
		if rs.Busy() == rs.Len() {
			p.countStall(NoFreeReservationStation)
			return nil
		}

		src1, err := p.readOperand(r.src1, r.imm1)
		if err != nil {
			return err
		}
		src2, err := p.readOperand(r.src2, r.imm2)
		if err != nil {
			return err
		}

		robEntry := p.rob.Allocate()
		robEntry.InstID = r.id
		robEntry.Op = r.inst.Op
		robEntry.Text = r.inst.Text
		robEntry.PC = r.pc
		robEntry.Dest = r.inst.Dest
		robEntry.Reg = r.dest
		robEntry.Prediction = r.prediction
		if r.dest != NoReg {
			p.regs.Get(r.dest).ROBTag = robEntry.Slot
		}

		entry := rs.Allocate()
		entry.InstID = r.id
		entry.Op = r.inst.Op
		entry.Text = r.inst.Text
		entry.ROBTag = robEntry.Slot
		entry.Src1 = src1
		entry.Src2 = src2
		entry.Ready = !src1.Waiting && !src2.Waiting

		switch {
		case r.inst.Op.IsStore():
			entry.Offset, err = r.inst.Target()
			if err != nil {
				return p.invariantf("store %q: %v", r.inst.Text, err)
			}
		case r.inst.Op.IsBranch():
			robEntry.Target, err = r.inst.Target()
			if err != nil {
				return p.invariantf("branch %q: %v", r.inst.Text, err)
			}
		}

		p.instQueue = p.instQueue[1:]
		p.stats.Dispatched++
		p.logger.Debug("dispatch", "cycle", p.cycle, "pc", r.pc, "inst", r.inst.Text,
			"rob", robEntry.Slot, "station", rs.Name(), "slot", entry.Slot)
	}
	return nil
}

// readOperand captures a source: the register's value once its producer
// has committed, otherwise the producer's ROB slot.
func (p *Pipeline) readOperand(reg PhysReg, imm float64) (Operand, error) {
	if reg == NoReg {
		return Operand{Value: imm, ROBTag: NoROBTag, Reg: NoReg}, nil
	}

	r := p.regs.Get(reg)
	if !r.Busy {
		return Operand{Value: r.Value, ROBTag: NoROBTag, Reg: NoReg}, nil
	}
	if r.ROBTag == NoROBTag {
		return Operand{}, p.invariantf("register %v is busy with no producer", reg)
	}
	return Operand{Waiting: true, ROBTag: r.ROBTag, Reg: reg}, nil
}
