package pipeline

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated. The halting tick is
	// not counted.
	Cycles uint64
	// Fetched is the number of instructions fetched.
	Fetched uint64
	// Renamed is the number of instructions renamed.
	Renamed uint64
	// Dispatched is the number of instructions given ROB and station slots.
	Dispatched uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// Squashed is the number of renamed instructions discarded by flushes.
	Squashed uint64

	// RegisterStalls counts cycles renaming stopped for lack of a free
	// physical register.
	RegisterStalls uint64
	// ROBStalls counts dispatch stops on a full reorder buffer.
	ROBStalls uint64
	// RSStalls counts dispatch stops on a full reservation station.
	RSStalls uint64
	// CDBStalls counts writeback stops on a full common data bus.
	CDBStalls uint64

	// Flushes is the number of pipeline flushes (due to branch mispredictions).
	Flushes uint64
	// BranchPredictions is the total number of branch predictions made.
	BranchPredictions uint64
	// BranchCorrect is the number of correct branch predictions.
	BranchCorrect uint64
	// BranchMispredictions is the number of branch mispredictions.
	BranchMispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// IPC returns the instructions committed per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// Stalls returns the counter for one stall reason.
func (s Statistics) Stalls(reason StallReason) uint64 {
	switch reason {
	case NoFreePhysicalRegister:
		return s.RegisterStalls
	case NoFreeROBSlot:
		return s.ROBStalls
	case NoFreeReservationStation:
		return s.RSStalls
	case CDBFull:
		return s.CDBStalls
	default:
		return 0
	}
}

// TotalStalls returns the sum of all stall counters.
func (s Statistics) TotalStalls() uint64 {
	return s.RegisterStalls + s.ROBStalls + s.RSStalls + s.CDBStalls
}

func (p *Pipeline) countStall(reason StallReason) {
	switch reason {
	case NoFreePhysicalRegister:
		p.stats.RegisterStalls++
	case NoFreeROBSlot:
		p.stats.ROBStalls++
	case NoFreeReservationStation:
		p.stats.RSStalls++
	case CDBFull:
		p.stats.CDBStalls++
	}
	p.logger.Debug("stall", "cycle", p.cycle, "reason", reason.String())
}
