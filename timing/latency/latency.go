// Package latency provides the per-class execution latencies and
// reservation-station capacities of the Tomasulo core.
//
// The values can be configured via TimingConfig, loaded from JSON.
package latency

import (
	"github.com/sarchlab/tomasim/insts"
)

// Table provides latency and capacity lookups by functional-unit class.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for a class.
func (t *Table) GetLatency(class insts.Class) uint64 {
	switch class {
	case insts.ClassInt:
		return t.config.IntLatency
	case insts.ClassLoad:
		return t.config.LoadLatency
	case insts.ClassStore:
		return t.config.StoreLatency
	case insts.ClassFPAdd:
		return t.config.FPAddLatency
	case insts.ClassFPMul:
		return t.config.FPMulLatency
	case insts.ClassFPDiv:
		return t.config.FPDivLatency
	case insts.ClassBranch:
		return t.config.BranchLatency
	default:
		return 1
	}
}

// GetOpLatency returns the execution latency of an opcode.
func (t *Table) GetOpLatency(op insts.Op) uint64 {
	if op == insts.OpUnknown {
		return 1
	}
	return t.GetLatency(op.Class())
}

// StationSize returns the number of reservation-station entries for a class.
func (t *Table) StationSize(class insts.Class) int {
	switch class {
	case insts.ClassInt:
		return t.config.IntStations
	case insts.ClassLoad:
		return t.config.LoadStations
	case insts.ClassStore:
		return t.config.StoreStations
	case insts.ClassFPAdd:
		return t.config.FPAddStations
	case insts.ClassFPMul:
		return t.config.FPMulStations
	case insts.ClassFPDiv:
		return t.config.FPDivStations
	case insts.ClassBranch:
		return t.config.BranchStations
	default:
		return 0
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
