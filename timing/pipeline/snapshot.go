package pipeline

import "github.com/sarchlab/tomasim/insts"

// StationState is a point-in-time view of one reservation station.
type StationState struct {
	Class   insts.Class
	Entries []StationEntry
}

// Snapshot is a point-in-time copy of the core's observable state.
type Snapshot struct {
	Cycle uint64
	PC    int64

	AliasTable map[string][]PhysReg
	FreeList   []PhysReg
	Registers  []PhysicalRegister

	ROB     []ROBEntry
	ROBHead int
	ROBTail int

	Stations []StationState
	Units    []FunctionalUnitState
	CDB      []CDBMessage

	DecodeQueue      []string
	InstructionQueue []string

	Stats Statistics
}

// Snapshot captures the current state. The result shares nothing with the
// pipeline.
func (p *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		Cycle:      p.cycle,
		PC:         p.pc,
		AliasTable: p.rat.Snapshot(),
		FreeList:   p.freeList.Snapshot(),
		Registers:  p.regs.Snapshot(),
		ROB:        p.rob.Snapshot(),
		ROBHead:    p.rob.Head(),
		ROBTail:    p.rob.Tail(),
		CDB:        p.bus.Messages(),
		Stats:      p.Stats(),
	}

	for _, rs := range p.stations {
		s.Stations = append(s.Stations, StationState{Class: rs.Class, Entries: rs.Snapshot()})
	}
	for _, fu := range p.units {
		s.Units = append(s.Units, fu.state())
	}
	for _, f := range p.decodeQueue {
		s.DecodeQueue = append(s.DecodeQueue, f.text)
	}
	for _, r := range p.instQueue {
		s.InstructionQueue = append(s.InstructionQueue, r.inst.Text)
	}

	return s
}

// ArchitectedRegisters returns the committed value of every mapped
// architectural register: the value of the newest binding whose producer
// has committed. Names with no committed binding are omitted.
func (p *Pipeline) ArchitectedRegisters() map[string]float64 {
	out := make(map[string]float64)
	for _, name := range p.rat.Names() {
		chain := p.rat.Chain(name)
		for i := len(chain) - 1; i >= 0; i-- {
			r := p.regs.Get(chain[i])
			if !r.Busy {
				out[name] = r.Value
				break
			}
		}
	}
	return out
}

// ROBOccupancy returns the number of in-flight ROB entries.
func (p *Pipeline) ROBOccupancy() int {
	return p.rob.Len()
}
