package pipeline

import (
	"fmt"
	"sort"
)

// PhysReg is a handle into the physical register file.
type PhysReg int

// NoReg marks the absence of a physical register.
const NoReg PhysReg = -1

// NoROBTag marks a register or operand with no producing ROB entry.
const NoROBTag = -1

// String returns the register name, p0, p1, ...
func (r PhysReg) String() string {
	if r == NoReg {
		return "-"
	}
	return fmt.Sprintf("p%d", int(r))
}

// PhysicalRegister is one entry of the physical register file.
type PhysicalRegister struct {
	Tag   PhysReg
	Value float64
	// Busy is set while the producing instruction is in flight.
	Busy bool
	// ROBTag is the producing ROB slot, or NoROBTag.
	ROBTag int
}

// RegisterFile is the fixed pool of physical registers.
type RegisterFile struct {
	regs []PhysicalRegister
}

// NewRegisterFile creates n zero-valued, idle registers p0..p(n-1).
func NewRegisterFile(n int) *RegisterFile {
	rf := &RegisterFile{regs: make([]PhysicalRegister, n)}
	for i := range rf.regs {
		rf.regs[i] = PhysicalRegister{Tag: PhysReg(i), ROBTag: NoROBTag}
	}
	return rf
}

// Len returns the number of physical registers.
func (rf *RegisterFile) Len() int {
	return len(rf.regs)
}

// Get returns the register with handle r.
func (rf *RegisterFile) Get(r PhysReg) *PhysicalRegister {
	return &rf.regs[r]
}

// bind resets r for a new binding.
func (rf *RegisterFile) bind(r PhysReg, busy bool) {
	rf.regs[r] = PhysicalRegister{Tag: r, Busy: busy, ROBTag: NoROBTag}
}

// Snapshot returns a copy of every register.
func (rf *RegisterFile) Snapshot() []PhysicalRegister {
	out := make([]PhysicalRegister, len(rf.regs))
	copy(out, rf.regs)
	return out
}

// FreeList is the FIFO of unallocated physical registers.
type FreeList struct {
	queue  []PhysReg
	isFree []bool
}

// NewFreeList creates a free list holding p0..p(n-1) in order.
func NewFreeList(n int) *FreeList {
	fl := &FreeList{
		queue:  make([]PhysReg, 0, n),
		isFree: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		fl.queue = append(fl.queue, PhysReg(i))
		fl.isFree[i] = true
	}
	return fl
}

// Len returns the number of free registers.
func (fl *FreeList) Len() int {
	return len(fl.queue)
}

// Pop removes and returns the oldest free register.
func (fl *FreeList) Pop() (PhysReg, bool) {
	if len(fl.queue) == 0 {
		return NoReg, false
	}
	r := fl.queue[0]
	fl.queue = fl.queue[1:]
	fl.isFree[r] = false
	return r, true
}

// Push returns r to the back of the list. Returning a register that is
// already free is an error.
func (fl *FreeList) Push(r PhysReg) error {
	if r < 0 || int(r) >= len(fl.isFree) {
		return fmt.Errorf("register %v out of range", r)
	}
	if fl.isFree[r] {
		return fmt.Errorf("register %v freed twice", r)
	}
	fl.isFree[r] = true
	fl.queue = append(fl.queue, r)
	return nil
}

// Contains reports whether r is free.
func (fl *FreeList) Contains(r PhysReg) bool {
	return r >= 0 && int(r) < len(fl.isFree) && fl.isFree[r]
}

// Snapshot returns the free registers in allocation order.
func (fl *FreeList) Snapshot() []PhysReg {
	out := make([]PhysReg, len(fl.queue))
	copy(out, fl.queue)
	return out
}

// AliasTable maps architectural register names to their chain of physical
// bindings, oldest first. The last element is the active rename.
type AliasTable struct {
	chains map[string][]PhysReg
}

// NewAliasTable creates an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{chains: make(map[string][]PhysReg)}
}

// Current returns the active rename of name.
func (t *AliasTable) Current(name string) (PhysReg, bool) {
	chain := t.chains[name]
	if len(chain) == 0 {
		return NoReg, false
	}
	return chain[len(chain)-1], true
}

// Push makes r the active rename of name.
func (t *AliasTable) Push(name string, r PhysReg) {
	t.chains[name] = append(t.chains[name], r)
}

// Chain returns a copy of the bindings of name, oldest first.
func (t *AliasTable) Chain(name string) []PhysReg {
	chain := t.chains[name]
	out := make([]PhysReg, len(chain))
	copy(out, chain)
	return out
}

// Remove drops r from the chain of name. It reports whether r was bound.
func (t *AliasTable) Remove(name string, r PhysReg) bool {
	chain := t.chains[name]
	for i, tag := range chain {
		if tag == r {
			t.chains[name] = append(chain[:i:i], chain[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns every mapped architectural name in sorted order.
func (t *AliasTable) Names() []string {
	names := make([]string, 0, len(t.chains))
	for name, chain := range t.chains {
		if len(chain) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of every chain.
func (t *AliasTable) Snapshot() map[string][]PhysReg {
	out := make(map[string][]PhysReg, len(t.chains))
	for _, name := range t.Names() {
		out[name] = t.Chain(name)
	}
	return out
}
