// Package insts provides the instruction definitions and textual decoding
// used by the Tomasulo core.
//
// This package turns one line of assembly text into a structured
// Instruction with a uniform (destination, source1, source2) shape. It
// supports:
//   - Integer: add, addi
//   - Floating point: fadd, fsub, fmul, fdiv
//   - Memory: fld, fsd
//   - Branch: bne
//
// Store and branch operands are reordered while decoding so that every
// operation carries the same three operand slots:
//
//	fsd F2, 8(R1)   -> Dest "8",  Src1 "F2", Src2 "R1"
//	bne R1, R2, 16  -> Dest "16", Src1 "R1", Src2 "R2"
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode("fadd F0, F2, F4")
//	fmt.Printf("Op: %v, Class: %v, Dest: %s\n", inst.Op, inst.Op.Class(), inst.Dest)
package insts
