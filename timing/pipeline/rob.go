package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// ROBState is the lifecycle state of a reorder-buffer entry.
type ROBState uint8

// ROB entry states, in the order an instruction passes through them.
const (
	ROBEmpty ROBState = iota
	ROBDispatched
	ROBExecuting
	ROBExecutionComplete
	ROBReadyForWriteBack
	ROBWriteBack
	ROBCommitted
)

func (s ROBState) String() string {
	switch s {
	case ROBEmpty:
		return "Empty"
	case ROBDispatched:
		return "Dispatched"
	case ROBExecuting:
		return "Executing"
	case ROBExecutionComplete:
		return "ExecutionComplete"
	case ROBReadyForWriteBack:
		return "ReadyForWriteBack"
	case ROBWriteBack:
		return "WriteBack"
	case ROBCommitted:
		return "Committed"
	default:
		return fmt.Sprintf("ROBState(%d)", uint8(s))
	}
}

// ROBEntry is one reorder-buffer slot.
type ROBEntry struct {
	Slot   int
	InstID uint64
	Op     insts.Op
	Text   string
	PC     int64
	State  ROBState

	// Dest is the architectural destination register, the store offset or
	// the branch target, as written in the instruction.
	Dest string
	// Address is the resolved store address.
	Address int64
	// Target is the branch target byte address.
	Target int64

	Value float64
	// Reg is the bound physical destination register, or NoReg.
	Reg PhysReg

	Busy  bool
	Ready bool

	// Taken is the resolved branch outcome.
	Taken bool
	// Prediction is the direction and target predicted at rename.
	Prediction Prediction
}

// Name returns the slot name, ROB0, ROB1, ...
func (e *ROBEntry) Name() string {
	return fmt.Sprintf("ROB%d", e.Slot)
}

func (e *ROBEntry) reset() {
	*e = ROBEntry{Slot: e.Slot, Reg: NoReg}
}

// ReorderBuffer is the circular, program-ordered queue of in-flight
// instructions. One slot is always left unused so that head == tail means
// empty; the usable capacity is Capacity()-1.
type ReorderBuffer struct {
	entries []ROBEntry
	head    int
	tail    int
}

// NewReorderBuffer creates a buffer with size slots.
func NewReorderBuffer(size int) *ReorderBuffer {
	rob := &ReorderBuffer{entries: make([]ROBEntry, size)}
	for i := range rob.entries {
		rob.entries[i] = ROBEntry{Slot: i, Reg: NoReg}
	}
	return rob
}

// Capacity returns the number of slots, including the reserved one.
func (rob *ReorderBuffer) Capacity() int {
	return len(rob.entries)
}

// Head returns the index of the oldest entry.
func (rob *ReorderBuffer) Head() int {
	return rob.head
}

// Tail returns the index of the next slot to allocate.
func (rob *ReorderBuffer) Tail() int {
	return rob.tail
}

// Len returns the occupancy, (tail - head) mod capacity.
func (rob *ReorderBuffer) Len() int {
	n := len(rob.entries)
	return ((rob.tail-rob.head)%n + n) % n
}

// Available reports whether a slot can be allocated.
func (rob *ReorderBuffer) Available() bool {
	return rob.next(rob.tail) != rob.head
}

// Empty reports whether no entry is busy.
func (rob *ReorderBuffer) Empty() bool {
	for i := range rob.entries {
		if rob.entries[i].Busy {
			return false
		}
	}
	return true
}

// Allocate claims the tail slot. It returns nil when the buffer is full.
func (rob *ReorderBuffer) Allocate() *ROBEntry {
	if !rob.Available() {
		return nil
	}
	e := &rob.entries[rob.tail]
	e.reset()
	e.Busy = true
	e.State = ROBDispatched
	rob.tail = rob.next(rob.tail)
	return e
}

// Entry returns the entry in slot i.
func (rob *ReorderBuffer) Entry(i int) *ROBEntry {
	return &rob.entries[i]
}

// HeadEntry returns the oldest entry.
func (rob *ReorderBuffer) HeadEntry() *ROBEntry {
	return &rob.entries[rob.head]
}

// advanceHead retires the head slot.
func (rob *ReorderBuffer) advanceHead() {
	rob.head = rob.next(rob.head)
}

// squashAfterHead walks from tail-1 back to, but excluding, head, calling
// fn on each entry before resetting it. Afterwards tail is head+1.
func (rob *ReorderBuffer) squashAfterHead(fn func(*ROBEntry) error) error {
	for i := rob.prev(rob.tail); i != rob.head; i = rob.prev(i) {
		if err := fn(&rob.entries[i]); err != nil {
			return err
		}
		rob.entries[i].reset()
	}
	rob.tail = rob.next(rob.head)
	return nil
}

func (rob *ReorderBuffer) next(i int) int {
	return (i + 1) % len(rob.entries)
}

func (rob *ReorderBuffer) prev(i int) int {
	return (i - 1 + len(rob.entries)) % len(rob.entries)
}

// Snapshot returns a copy of every slot.
func (rob *ReorderBuffer) Snapshot() []ROBEntry {
	out := make([]ROBEntry, len(rob.entries))
	copy(out, rob.entries)
	return out
}
