package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// Operand is a reservation-station source: either a resolved value or the
// producer it is waiting for.
type Operand struct {
	Value   float64
	Waiting bool
	// ROBTag and Reg identify the producer while Waiting.
	ROBTag int
	Reg    PhysReg
}

// String renders the operand as its value or its producer tag.
func (o Operand) String() string {
	if o.Waiting {
		return fmt.Sprintf("ROB%d/%v", o.ROBTag, o.Reg)
	}
	return fmt.Sprintf("%g", o.Value)
}

// StationEntry is one reservation-station slot.
type StationEntry struct {
	Busy   bool
	Ready  bool
	InstID uint64
	Op     insts.Op
	Text   string
	// ROBTag is the destination ROB slot.
	ROBTag int
	Src1   Operand
	Src2   Operand
	// Offset is the store's address offset.
	Offset int64
	// Slot is the entry's fixed position in its station.
	Slot int
}

func (e *StationEntry) reset() {
	*e = StationEntry{Slot: e.Slot, ROBTag: NoROBTag}
}

// ReservationStation is the fixed-capacity pool of entries for one class.
type ReservationStation struct {
	Class   insts.Class
	entries []StationEntry
}

// NewReservationStation creates a station with size entries.
func NewReservationStation(class insts.Class, size int) *ReservationStation {
	rs := &ReservationStation{Class: class, entries: make([]StationEntry, size)}
	for i := range rs.entries {
		rs.entries[i] = StationEntry{Slot: i, ROBTag: NoROBTag}
	}
	return rs
}

// Name returns the station's display name.
func (rs *ReservationStation) Name() string {
	return rs.Class.String()
}

// Len returns the number of slots.
func (rs *ReservationStation) Len() int {
	return len(rs.entries)
}

// Entry returns the entry in slot i.
func (rs *ReservationStation) Entry(i int) *StationEntry {
	return &rs.entries[i]
}

// Busy returns the number of occupied slots.
func (rs *ReservationStation) Busy() int {
	n := 0
	for i := range rs.entries {
		if rs.entries[i].Busy {
			n++
		}
	}
	return n
}

// Allocate claims the first free slot, or returns nil when full.
func (rs *ReservationStation) Allocate() *StationEntry {
	for i := range rs.entries {
		if !rs.entries[i].Busy {
			e := &rs.entries[i]
			e.reset()
			e.Busy = true
			return e
		}
	}
	return nil
}

// Snoop captures bus results for waiting operands and refreshes readiness.
func (rs *ReservationStation) Snoop(bus *CommonDataBus) {
	for i := range rs.entries {
		e := &rs.entries[i]
		if !e.Busy {
			continue
		}
		bus.capture(&e.Src1)
		bus.capture(&e.Src2)
		e.Ready = !e.Src1.Waiting && !e.Src2.Waiting
	}
}

// readyAt reports whether slot i holds an entry ready to start.
func (rs *ReservationStation) readyAt(i int) bool {
	return i < len(rs.entries) && rs.entries[i].Busy && rs.entries[i].Ready
}

// FirstReady returns the lowest ready slot, or -1.
func (rs *ReservationStation) FirstReady() int {
	for i := range rs.entries {
		if rs.readyAt(i) {
			return i
		}
	}
	return -1
}

// Release frees slot i in place.
func (rs *ReservationStation) Release(i int) {
	rs.entries[i].reset()
}

// Reset frees every slot.
func (rs *ReservationStation) Reset() {
	for i := range rs.entries {
		rs.entries[i].reset()
	}
}

// Snapshot returns a copy of every slot.
func (rs *ReservationStation) Snapshot() []StationEntry {
	out := make([]StationEntry, len(rs.entries))
	copy(out, rs.entries)
	return out
}
