package insts

import "math"

// Op represents an opcode.
type Op uint8

// Opcodes.
const (
	OpUnknown Op = iota
	OpADD
	OpADDI
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFLD
	OpFSD
	OpBNE
)

// Class identifies the reservation-station / functional-unit class an
// opcode executes on.
type Class uint8

// Functional-unit classes, in the order the core advances them each cycle.
const (
	ClassInt Class = iota
	ClassLoad
	ClassStore
	ClassFPAdd
	ClassFPMul
	ClassFPDiv
	ClassBranch

	// NumClasses is the number of functional-unit classes.
	NumClasses
)

type opInfo struct {
	mnemonic string
	class    Class
	// writesReg is false for stores and branches, which allocate no
	// destination register.
	writesReg bool
	eval      func(a, b float64) float64
}

var opTable = [...]opInfo{
	OpUnknown: {mnemonic: "unknown"},
	OpADD:     {mnemonic: "add", class: ClassInt, writesReg: true, eval: addInt},
	OpADDI:    {mnemonic: "addi", class: ClassInt, writesReg: true, eval: addInt},
	OpFADD:    {mnemonic: "fadd", class: ClassFPAdd, writesReg: true, eval: func(a, b float64) float64 { return a + b }},
	OpFSUB:    {mnemonic: "fsub", class: ClassFPAdd, writesReg: true, eval: func(a, b float64) float64 { return a - b }},
	OpFMUL:    {mnemonic: "fmul", class: ClassFPMul, writesReg: true, eval: func(a, b float64) float64 { return a * b }},
	OpFDIV:    {mnemonic: "fdiv", class: ClassFPDiv, writesReg: true, eval: func(a, b float64) float64 { return a / b }},
	// Effective address: immediate offset + base register.
	OpFLD: {mnemonic: "fld", class: ClassLoad, writesReg: true, eval: addAddress},
	// Effective address: base register + offset.
	OpFSD: {mnemonic: "fsd", class: ClassStore, eval: addAddress},
	// 1 when taken (operands differ), 0 otherwise.
	OpBNE: {mnemonic: "bne", class: ClassBranch, eval: func(a, b float64) float64 {
		if a != b {
			return 1
		}
		return 0
	}},
}

var opsByMnemonic = func() map[string]Op {
	m := make(map[string]Op, len(opTable))
	for op := OpADD; int(op) < len(opTable); op++ {
		m[opTable[op].mnemonic] = op
	}
	return m
}()

func addInt(a, b float64) float64 {
	return float64(int64(a) + int64(b))
}

func addAddress(a, b float64) float64 {
	return math.Trunc(a) + math.Trunc(b)
}

// LookupOp returns the opcode for a mnemonic, or OpUnknown.
func LookupOp(mnemonic string) Op {
	return opsByMnemonic[mnemonic]
}

// String returns the assembly mnemonic.
func (op Op) String() string {
	if int(op) >= len(opTable) {
		return "unknown"
	}
	return opTable[op].mnemonic
}

// Class returns the functional-unit class the opcode executes on.
func (op Op) Class() Class {
	return opTable[op].class
}

// WritesRegister reports whether the opcode produces a register result.
func (op Op) WritesRegister() bool {
	return opTable[op].writesReg
}

// IsLoad returns true for load opcodes.
func (op Op) IsLoad() bool { return op == OpFLD }

// IsStore returns true for store opcodes.
func (op Op) IsStore() bool { return op == OpFSD }

// IsBranch returns true for branch opcodes.
func (op Op) IsBranch() bool { return op == OpBNE }

// Evaluate applies the opcode's pure evaluator to two resolved operands.
//
// Arithmetic opcodes return their result. Memory opcodes return the
// effective address. Branches return 1 when taken and 0 otherwise.
func (op Op) Evaluate(a, b float64) float64 {
	info := opTable[op]
	if info.eval == nil {
		return 0
	}
	return info.eval(a, b)
}

// String returns a short name for the class, as used in station names.
func (c Class) String() string {
	switch c {
	case ClassInt:
		return "INT"
	case ClassLoad:
		return "Load"
	case ClassStore:
		return "Store"
	case ClassFPAdd:
		return "FPadd"
	case ClassFPMul:
		return "FPmult"
	case ClassFPDiv:
		return "FPdiv"
	case ClassBranch:
		return "BU"
	default:
		return "unknown"
	}
}

// Classes returns every functional-unit class in advance order.
func Classes() []Class {
	classes := make([]Class, 0, NumClasses)
	for c := ClassInt; c < NumClasses; c++ {
		classes = append(classes, c)
	}
	return classes
}
