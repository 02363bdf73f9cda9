// Package emu provides the functional model of the Tomasulo core's
// architectural state: data memory, the architectural register file, and an
// in-order reference emulator used to verify out-of-order runs.
package emu

import (
	"errors"
	"fmt"
)

// ErrAddressOutOfRange is returned when an access falls outside memory.
var ErrAddressOutOfRange = errors.New("address out of range")

// Memory is a flat, fixed-size data memory of float64 words indexed by
// integer address.
type Memory struct {
	words []float64
}

// NewMemory creates a zero-filled memory with size words.
func NewMemory(size int) *Memory {
	if size < 0 {
		size = 0
	}
	return &Memory{words: make([]float64, size)}
}

// NewMemoryFrom creates a memory initialized with a copy of words.
func NewMemoryFrom(words []float64) *Memory {
	m := &Memory{words: make([]float64, len(words))}
	copy(m.words, words)
	return m
}

// Size returns the number of addressable words.
func (m *Memory) Size() int {
	return len(m.words)
}

// Read returns the word at addr.
func (m *Memory) Read(addr int64) (float64, error) {
	if !m.inRange(addr) {
		return 0, fmt.Errorf("read %d (size %d): %w", addr, len(m.words), ErrAddressOutOfRange)
	}
	return m.words[addr], nil
}

// Write stores value at addr.
func (m *Memory) Write(addr int64, value float64) error {
	if !m.inRange(addr) {
		return fmt.Errorf("write %d (size %d): %w", addr, len(m.words), ErrAddressOutOfRange)
	}
	m.words[addr] = value
	return nil
}

// Snapshot returns a copy of the memory contents.
func (m *Memory) Snapshot() []float64 {
	out := make([]float64, len(m.words))
	copy(out, m.words)
	return out
}

// Clone returns an independent copy of the memory.
func (m *Memory) Clone() *Memory {
	return NewMemoryFrom(m.words)
}

func (m *Memory) inRange(addr int64) bool {
	return addr >= 0 && addr < int64(len(m.words))
}
