package pipeline

import "github.com/sarchlab/tomasim/insts"

// FunctionalUnit executes one station entry at a time. Units are not
// pipelined: a new entry starts only after the current one completes.
type FunctionalUnit struct {
	Name string
	Busy bool

	// station and Slot locate the entry being executed.
	station *ReservationStation
	Slot    int

	Latency uint64
	Elapsed uint64
}

// NewFunctionalUnit creates an idle unit.
func NewFunctionalUnit(name string) *FunctionalUnit {
	return &FunctionalUnit{Name: name, Slot: -1}
}

// Current returns the entry being executed, or nil when idle.
func (fu *FunctionalUnit) Current() *StationEntry {
	if !fu.Busy {
		return nil
	}
	return fu.station.Entry(fu.Slot)
}

// CurrentClass returns the class of the station feeding the unit.
func (fu *FunctionalUnit) CurrentClass() (insts.Class, bool) {
	if !fu.Busy {
		return 0, false
	}
	return fu.station.Class, true
}

// start begins executing slot of rs. The first cycle counts towards the
// latency, so it reports completion immediately for 1-cycle units.
func (fu *FunctionalUnit) start(rs *ReservationStation, slot int, latency uint64) bool {
	fu.Busy = true
	fu.station = rs
	fu.Slot = slot
	fu.Latency = latency
	fu.Elapsed = 0
	return fu.advance()
}

// advance counts one cycle and reports whether the entry completed.
func (fu *FunctionalUnit) advance() bool {
	fu.Elapsed++
	return fu.Elapsed >= fu.Latency
}

// finish releases the unit and the completed station slot.
func (fu *FunctionalUnit) finish() {
	fu.station.Release(fu.Slot)
	fu.Reset()
}

// Reset idles the unit.
func (fu *FunctionalUnit) Reset() {
	fu.Busy = false
	fu.station = nil
	fu.Slot = -1
	fu.Latency = 0
	fu.Elapsed = 0
}

// FunctionalUnitState is a point-in-time view of a unit.
type FunctionalUnitState struct {
	Name    string
	Busy    bool
	Class   insts.Class
	Slot    int
	InstID  uint64
	Text    string
	Latency uint64
	Elapsed uint64
}

func (fu *FunctionalUnit) state() FunctionalUnitState {
	s := FunctionalUnitState{Name: fu.Name, Busy: fu.Busy, Slot: fu.Slot,
		Latency: fu.Latency, Elapsed: fu.Elapsed}
	if class, ok := fu.CurrentClass(); ok {
		s.Class = class
	}
	if e := fu.Current(); e != nil {
		s.InstID = e.InstID
		s.Text = e.Text
	}
	return s
}
