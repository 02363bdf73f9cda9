package pipeline

// CDBMessage is one common-data-bus broadcast.
type CDBMessage struct {
	ROBTag int
	// Reg is the producer's physical register, or NoReg for stores and
	// branches.
	Reg   PhysReg
	Value float64
}

// CommonDataBus carries at most Width messages per cycle.
type CommonDataBus struct {
	width    int
	messages []CDBMessage
}

// NewCommonDataBus creates a bus with the given width.
func NewCommonDataBus(width int) *CommonDataBus {
	return &CommonDataBus{width: width, messages: make([]CDBMessage, 0, width)}
}

// Width returns the per-cycle message limit.
func (b *CommonDataBus) Width() int {
	return b.width
}

// Len returns the number of messages on the bus.
func (b *CommonDataBus) Len() int {
	return len(b.messages)
}

// Full reports whether no more messages fit this cycle.
func (b *CommonDataBus) Full() bool {
	return len(b.messages) >= b.width
}

// Broadcast puts msg on the bus. It returns false when the bus is full.
func (b *CommonDataBus) Broadcast(msg CDBMessage) bool {
	if b.Full() {
		return false
	}
	b.messages = append(b.messages, msg)
	return true
}

// Clear empties the bus.
func (b *CommonDataBus) Clear() {
	b.messages = b.messages[:0]
}

// Messages returns a copy of the messages on the bus.
func (b *CommonDataBus) Messages() []CDBMessage {
	out := make([]CDBMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

// capture resolves op if a message from its producer is on the bus. A
// producer is identified by both its ROB slot and its register so that a
// recycled slot cannot satisfy a stale wait.
func (b *CommonDataBus) capture(op *Operand) {
	if !op.Waiting {
		return
	}
	for _, msg := range b.messages {
		if msg.ROBTag == op.ROBTag && msg.Reg == op.Reg {
			op.Value = msg.Value
			op.Waiting = false
			op.ROBTag = NoROBTag
			op.Reg = NoReg
			return
		}
	}
}
