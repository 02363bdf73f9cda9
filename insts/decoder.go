package insts

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Instruction represents a decoded instruction.
//
// Every opcode uses the same three operand slots. For stores Dest holds the
// address offset, Src1 the stored register and Src2 the base register. For
// branches Dest holds the target and Src1/Src2 the compared registers.
type Instruction struct {
	Op   Op     // Operation code
	Text string // Source text, trimmed

	Dest string // Destination register, store offset or branch target
	Src1 string // First source token (register or immediate)
	Src2 string // Second source token (register or immediate)
}

// DecodeError is returned for malformed instruction text.
type DecodeError struct {
	// Line is the 1-based source line, or 0 when unknown.
	Line   int
	Text   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: cannot decode %q: %s", e.Line, e.Text, e.Reason)
	}
	return fmt.Sprintf("cannot decode %q: %s", e.Text, e.Reason)
}

// Decoder decodes instruction text into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one line of instruction text.
func (d *Decoder) Decode(text string) (*Instruction, error) {
	text = strings.TrimSpace(text)
	mnemonic, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		mnemonic, rest = text[:i], text[i+1:]
	}
	op := LookupOp(strings.ToLower(mnemonic))
	if op == OpUnknown {
		return nil, &DecodeError{Text: text, Reason: fmt.Sprintf("unknown opcode %q", mnemonic)}
	}

	inst := &Instruction{Op: op, Text: text}

	var err error
	switch op {
	case OpFLD, OpFSD:
		err = d.decodeMemory(inst, rest)
	default:
		err = d.decodeThreeOperand(inst, rest)
	}
	if err != nil {
		return nil, err
	}

	if err := d.checkOperandKinds(inst); err != nil {
		return nil, err
	}

	return inst, nil
}

// decodeThreeOperand handles "op a, b, c" forms.
func (d *Decoder) decodeThreeOperand(inst *Instruction, rest string) error {
	ops, err := splitOperands(inst.Text, rest, 3)
	if err != nil {
		return err
	}

	if inst.Op == OpBNE {
		// bne Ra, Rb, target
		inst.Dest, inst.Src1, inst.Src2 = ops[2], ops[0], ops[1]
		return nil
	}

	inst.Dest, inst.Src1, inst.Src2 = ops[0], ops[1], ops[2]
	return nil
}

// decodeMemory handles "op reg, offset(base)" forms.
func (d *Decoder) decodeMemory(inst *Instruction, rest string) error {
	ops, err := splitOperands(inst.Text, rest, 2)
	if err != nil {
		return err
	}

	offset, base, ok := strings.Cut(ops[1], "(")
	if !ok || !strings.HasSuffix(base, ")") {
		return &DecodeError{Text: inst.Text, Reason: "expected offset(base) addressing"}
	}
	offset = strings.TrimSpace(offset)
	base = strings.TrimSpace(strings.TrimSuffix(base, ")"))
	if offset == "" || base == "" {
		return &DecodeError{Text: inst.Text, Reason: "empty offset or base register"}
	}

	if inst.Op == OpFSD {
		// fsd Fs, offset(Rb)
		inst.Dest, inst.Src1, inst.Src2 = offset, ops[0], base
		return nil
	}

	inst.Dest, inst.Src1, inst.Src2 = ops[0], offset, base
	return nil
}

// checkOperandKinds enforces register/immediate positions per opcode.
func (d *Decoder) checkOperandKinds(inst *Instruction) error {
	wantReg := func(tok, what string) error {
		if !IsRegister(tok) {
			return &DecodeError{Text: inst.Text, Reason: what + " must be a register"}
		}
		return nil
	}
	wantImm := func(tok, what string) error {
		if IsRegister(tok) {
			return &DecodeError{Text: inst.Text, Reason: what + " must be a numeric literal"}
		}
		return nil
	}

	switch inst.Op {
	case OpADDI:
		return firstErr(wantReg(inst.Dest, "destination"), wantReg(inst.Src1, "source"),
			wantImm(inst.Src2, "immediate"))
	case OpFLD:
		return firstErr(wantReg(inst.Dest, "destination"), wantImm(inst.Src1, "offset"),
			wantReg(inst.Src2, "base"))
	case OpFSD:
		return firstErr(wantImm(inst.Dest, "offset"), wantReg(inst.Src1, "source"),
			wantReg(inst.Src2, "base"))
	case OpBNE:
		// Labels are resolved upstream, so the target must be numeric here.
		return firstErr(wantImm(inst.Dest, "target"), wantReg(inst.Src1, "source"),
			wantReg(inst.Src2, "source"))
	default:
		return firstErr(wantReg(inst.Dest, "destination"), wantReg(inst.Src1, "source"),
			wantReg(inst.Src2, "source"))
	}
}

func splitOperands(text, rest string, want int) ([]string, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, &DecodeError{Text: text, Reason: fmt.Sprintf("expected %d operands, got 0", want)}
	}

	parts := strings.Split(rest, ",")
	if len(parts) != want {
		return nil, &DecodeError{
			Text:   text,
			Reason: fmt.Sprintf("expected %d operands, got %d", want, len(parts)),
		}
	}

	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return nil, &DecodeError{Text: text, Reason: fmt.Sprintf("operand %d is empty", i+1)}
		}
	}
	return parts, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsRegister reports whether an operand token names a register. A token is a
// register iff it is not a signed numeric literal.
func IsRegister(tok string) bool {
	if tok == "" {
		return false
	}
	if tok[0] == '+' || tok[0] == '-' {
		tok = tok[1:]
	}
	if tok == "" {
		return true
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

// ParseImmediate parses a signed numeric literal operand.
func ParseImmediate(tok string) (float64, error) {
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate %q: %w", tok, err)
	}
	return float64(v), nil
}

// Target returns the numeric branch target or store offset held in Dest.
func (i *Instruction) Target() (int64, error) {
	v, err := strconv.ParseInt(i.Dest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target %q: %w", i.Dest, err)
	}
	return v, nil
}
