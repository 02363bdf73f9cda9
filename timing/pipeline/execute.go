package pipeline

import (
	"github.com/sarchlab/tomasim/insts"
)

// execute advances every station and unit by one cycle, in class order,
// then clears the bus.
func (p *Pipeline) execute() error {
	for _, class := range insts.Classes() {
		var err error
		switch class {
		case insts.ClassLoad:
			err = p.executeLoadStore()
		case insts.ClassStore:
			// Handled with loads on the shared unit.
		default:
			err = p.executeClass(class)
		}
		if err != nil {
			return err
		}
	}

	p.bus.Clear()
	return nil
}

func (p *Pipeline) executeClass(class insts.Class) error {
	rs := p.stations[class]
	fu := p.unitFor[class]

	rs.Snoop(p.bus)

	if fu.Busy {
		return p.step(fu, nil, -1)
	}

	slot := rs.FirstReady()
	if slot < 0 {
		return nil
	}
	return p.step(fu, rs, slot)
}

// executeLoadStore drives the unit shared by the load and store buffers.
func (p *Pipeline) executeLoadStore() error {
	loads := p.stations[insts.ClassLoad]
	stores := p.stations[insts.ClassStore]
	fu := p.unitFor[insts.ClassLoad]

	stores.Snoop(p.bus)
	loads.Snoop(p.bus)

	if fu.Busy {
		return p.step(fu, nil, -1)
	}

	rs, slot := pickLoadStore(loads, stores)
	if rs == nil {
		return nil
	}
	return p.step(fu, rs, slot)
}

// pickLoadStore chooses the next entry for the shared unit. Slots are
// compared position by position; the first position where either side is
// ready decides. When both are ready the entry bound to the smaller ROB
// slot index runs.
func pickLoadStore(loads, stores *ReservationStation) (*ReservationStation, int) {
	n := max(loads.Len(), stores.Len())
	for i := 0; i < n; i++ {
		loadReady := loads.readyAt(i)
		storeReady := stores.readyAt(i)

		switch {
		case loadReady && storeReady:
			if stores.Entry(i).ROBTag > loads.Entry(i).ROBTag {
				return loads, i
			}
			return stores, i
		case loadReady:
			return loads, i
		case storeReady:
			return stores, i
		}
	}
	return nil, -1
}

// step advances fu by one cycle, starting slot of rs first when the unit is
// idle, and completes the entry when its latency has elapsed.
func (p *Pipeline) step(fu *FunctionalUnit, rs *ReservationStation, slot int) error {
	var done bool
	if fu.Busy {
		done = fu.advance()
	} else {
		done = fu.start(rs, slot, p.latencyTable.GetOpLatency(rs.Entry(slot).Op))
		p.logger.Debug("issue", "cycle", p.cycle, "unit", fu.Name, "inst", fu.Current().Text,
			"rob", fu.Current().ROBTag)
	}

	entry := fu.Current()
	robEntry := p.rob.Entry(entry.ROBTag)
	if !robEntry.Busy || robEntry.InstID != entry.InstID {
		return p.invariantf("station entry %q points at ROB%d holding instruction %d",
			entry.Text, entry.ROBTag, robEntry.InstID)
	}

	if !done {
		robEntry.State = ROBExecuting
		robEntry.Ready = false
		return nil
	}

	p.complete(entry, robEntry)
	fu.finish()
	return nil
}

// complete computes an entry's result and marks its ROB entry finished.
func (p *Pipeline) complete(entry *StationEntry, robEntry *ROBEntry) {
	a, b := entry.Src1.Value, entry.Src2.Value

	switch {
	case entry.Op.IsStore():
		robEntry.Address = int64(entry.Op.Evaluate(float64(entry.Offset), b))
		robEntry.Value = a
	case entry.Op.IsBranch():
		robEntry.Taken = entry.Op.Evaluate(a, b) != 0
	case entry.Op.IsLoad():
		addr := int64(entry.Op.Evaluate(a, b))
		v, err := p.memory.Read(addr)
		if err != nil {
			p.logger.Warn("load out of range, reading 0", "cycle", p.cycle, "inst", entry.Text,
				"addr", addr)
			v = 0
		}
		p.writeResult(robEntry, v)
	default:
		p.writeResult(robEntry, entry.Op.Evaluate(a, b))
	}

	robEntry.State = ROBExecutionComplete
	robEntry.Ready = true
	p.logger.Debug("complete", "cycle", p.cycle, "inst", entry.Text, "rob", robEntry.Slot)
}

func (p *Pipeline) writeResult(robEntry *ROBEntry, v float64) {
	robEntry.Value = v
	if robEntry.Reg != NoReg {
		p.regs.Get(robEntry.Reg).Value = v
	}
}
