package emu

import (
	"fmt"
	"math"
)

// Mismatch is one location where another run disagrees with the emulator.
type Mismatch struct {
	// Location is a register name or "mem[addr]".
	Location string
	Want     float64
	Got      float64
	// Missing is set when the other run has no value for the location.
	Missing bool
}

func (m Mismatch) String() string {
	if m.Missing {
		return fmt.Sprintf("%s: want %g, missing", m.Location, m.Want)
	}
	return fmt.Sprintf("%s: want %g, got %g", m.Location, m.Want, m.Got)
}

// Compare checks the registers and memory left by another run against the
// emulator's current state. Registers the emulator never touched must be 0
// in regs; they can only come from instructions that were later discarded.
func (e *Emulator) Compare(regs map[string]float64, memory []float64) []Mismatch {
	var out []Mismatch

	for _, name := range e.regFile.Names() {
		want, _ := e.regFile.Lookup(name)
		got, ok := regs[name]
		switch {
		case !ok:
			out = append(out, Mismatch{Location: name, Want: want, Missing: true})
		case !sameValue(want, got):
			out = append(out, Mismatch{Location: name, Want: want, Got: got})
		}
	}
	for name, got := range regs {
		if _, ok := e.regFile.Lookup(name); !ok && got != 0 {
			out = append(out, Mismatch{Location: name, Got: got})
		}
	}

	want := e.memory.Snapshot()
	for addr := 0; addr < max(len(want), len(memory)); addr++ {
		loc := fmt.Sprintf("mem[%d]", addr)
		switch {
		case addr >= len(memory):
			out = append(out, Mismatch{Location: loc, Want: want[addr], Missing: true})
		case addr >= len(want):
			out = append(out, Mismatch{Location: loc, Got: memory[addr]})
		case !sameValue(want[addr], memory[addr]):
			out = append(out, Mismatch{Location: loc, Want: want[addr], Got: memory[addr]})
		}
	}

	return out
}

func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
