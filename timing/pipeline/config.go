package pipeline

import (
	"errors"
	"fmt"
)

// Config holds the core's widths and capacities.
type Config struct {
	// FetchWidth is the number of instructions fetched per cycle (NF).
	FetchWidth int
	// DispatchWidth is the number of instructions dispatched per cycle (NW).
	DispatchWidth int
	// ROBSize is the number of reorder-buffer slots (NR). One slot is kept
	// free, so at most ROBSize-1 instructions are in flight.
	ROBSize int
	// CDBWidth is the number of common-data-bus messages per cycle (NB).
	CDBWidth int
	// PhysicalRegisters is the size of the physical register file.
	PhysicalRegisters int
	// BranchPrediction lets predicted-taken branches redirect fetch.
	BranchPrediction bool
	// MaxCycles stops a run that has not halted after this many cycles.
	// 0 means no limit.
	MaxCycles uint64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FetchWidth:        4,
		DispatchWidth:     4,
		ROBSize:           16,
		CDBWidth:          4,
		PhysicalRegisters: 32,
	}
}

// Validate checks that every width and capacity is usable.
func (c Config) Validate() error {
	if c.FetchWidth <= 0 {
		return fmt.Errorf("fetch width must be > 0, got %d", c.FetchWidth)
	}
	if c.DispatchWidth <= 0 {
		return fmt.Errorf("dispatch width must be > 0, got %d", c.DispatchWidth)
	}
	if c.ROBSize < 2 {
		return fmt.Errorf("rob size must be >= 2, got %d", c.ROBSize)
	}
	if c.CDBWidth <= 0 {
		return fmt.Errorf("cdb width must be > 0, got %d", c.CDBWidth)
	}
	if c.PhysicalRegisters <= 0 {
		return fmt.Errorf("physical registers must be > 0, got %d", c.PhysicalRegisters)
	}
	return nil
}

// ErrMaxCycles is returned when a run exceeds Config.MaxCycles.
var ErrMaxCycles = errors.New("max cycles reached")

// ErrOutOfRegisters is returned when renaming needs more physical registers
// than are free and no in-flight instruction can release any.
var ErrOutOfRegisters = errors.New("out of physical registers")
