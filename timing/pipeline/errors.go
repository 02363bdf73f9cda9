package pipeline

import "fmt"

// StallReason names a structural hazard that held an instruction back.
// Stalls are counted, never returned as errors.
type StallReason uint8

// Stall reasons.
const (
	NoFreePhysicalRegister StallReason = iota
	NoFreeROBSlot
	NoFreeReservationStation
	CDBFull
)

func (r StallReason) String() string {
	switch r {
	case NoFreePhysicalRegister:
		return "NoFreePhysicalRegister"
	case NoFreeROBSlot:
		return "NoFreeROBSlot"
	case NoFreeReservationStation:
		return "NoFreeReservationStation"
	case CDBFull:
		return "CDBFull"
	default:
		return fmt.Sprintf("StallReason(%d)", uint8(r))
	}
}

// InvariantError reports a corrupted core state. The run cannot continue.
type InvariantError struct {
	Cycle  uint64
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cycle %d: invariant violated: %s", e.Cycle, e.Reason)
}

func (p *Pipeline) invariantf(format string, args ...any) error {
	return &InvariantError{Cycle: p.cycle, Reason: fmt.Sprintf(format, args...)}
}
