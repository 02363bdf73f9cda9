// Package loader reads the simulator's text inputs: assembly programs with
// labels, and data-memory images.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/sarchlab/tomasim/insts"
)

// InstructionStride is the byte distance between consecutive instructions.
const InstructionStride = 4

// Line is one instruction of a loaded program.
type Line struct {
	// PC is the instruction's byte address.
	PC int64
	// Text is the instruction text with labels resolved.
	Text string
	// Inst is the decoded instruction.
	Inst *insts.Instruction
	// SourceLine is the 1-based line in the program file.
	SourceLine int
}

// Program is a loaded program. It implements the core's instruction source.
type Program struct {
	lines  []Line
	labels map[string]int64
}

// At returns the instruction text at byte address pc.
func (p *Program) At(pc int64) (string, bool) {
	if pc < 0 || pc%InstructionStride != 0 {
		return "", false
	}
	i := pc / InstructionStride
	if i >= int64(len(p.lines)) {
		return "", false
	}
	return p.lines[i].Text, true
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.lines)
}

// Lines returns the program's instructions in address order.
func (p *Program) Lines() []Line {
	return p.lines
}

// Label returns the byte address a label resolves to.
func (p *Program) Label(name string) (int64, bool) {
	pc, ok := p.labels[name]
	return pc, ok
}

// LoadProgram reads and parses a program file.
func LoadProgram(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := ParseProgram(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return prog, nil
}

// NewProgram builds a program from instruction lines.
func NewProgram(lines ...string) (*Program, error) {
	return ParseProgram(strings.NewReader(strings.Join(lines, "\n")))
}

// MustProgram is like NewProgram but panics on error. It is intended for
// fixed programs in tests and benchmarks.
func MustProgram(lines ...string) *Program {
	p, err := NewProgram(lines...)
	if err != nil {
		panic(err)
	}
	return p
}

type rawLine struct {
	text       string
	sourceLine int
}

// ParseProgram parses program text.
//
// Each line holds at most one instruction, optionally preceded by one or more
// "label:" prefixes. A label on a line of its own names the next
// instruction. Text after '#' or ';' is a comment. Branch targets may be a
// label or a literal byte address. Every instruction is decoded here so that
// malformed text is reported with its line number.
func ParseProgram(r io.Reader) (*Program, error) {
	prog := &Program{labels: make(map[string]int64)}

	var raws []rawLine
	var pending []string

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := stripComment(scanner.Text())

		labels, rest, err := splitLabels(text)
		if err != nil {
			return nil, &insts.DecodeError{Line: lineNo, Text: strings.TrimSpace(text), Reason: err.Error()}
		}
		pending = append(pending, labels...)
		if rest == "" {
			continue
		}

		pc := int64(len(raws)) * InstructionStride
		for _, l := range pending {
			if _, dup := prog.labels[l]; dup {
				return nil, &insts.DecodeError{Line: lineNo, Text: rest, Reason: fmt.Sprintf("duplicate label %q", l)}
			}
			prog.labels[l] = pc
		}
		pending = pending[:0]

		raws = append(raws, rawLine{text: rest, sourceLine: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	// Trailing labels point one past the last instruction.
	end := int64(len(raws)) * InstructionStride
	for _, l := range pending {
		if _, dup := prog.labels[l]; !dup {
			prog.labels[l] = end
		}
	}

	decoder := insts.NewDecoder()
	prog.lines = make([]Line, 0, len(raws))
	for i, raw := range raws {
		text, err := prog.resolveTarget(raw.text)
		if err != nil {
			return nil, &insts.DecodeError{Line: raw.sourceLine, Text: raw.text, Reason: err.Error()}
		}

		inst, err := decoder.Decode(text)
		if err != nil {
			var decodeErr *insts.DecodeError
			if errors.As(err, &decodeErr) {
				decodeErr.Line = raw.sourceLine
			}
			return nil, err
		}

		prog.lines = append(prog.lines, Line{
			PC:         int64(i) * InstructionStride,
			Text:       inst.Text,
			Inst:       inst,
			SourceLine: raw.sourceLine,
		})
	}

	return prog, nil
}

// resolveTarget rewrites a branch's label target to its byte address.
func (p *Program) resolveTarget(text string) (string, error) {
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 || insts.LookupOp(strings.ToLower(text[:i])) != insts.OpBNE {
		return text, nil
	}
	mnemonic, rest := text[:i], text[i+1:]

	ops := strings.Split(rest, ",")
	last := strings.TrimSpace(ops[len(ops)-1])
	if last == "" || !insts.IsRegister(last) {
		return text, nil
	}

	pc, ok := p.labels[last]
	if !ok {
		return "", fmt.Errorf("undefined label %q", last)
	}
	ops[len(ops)-1] = " " + strconv.FormatInt(pc, 10)
	return mnemonic + " " + strings.Join(ops, ","), nil
}

func stripComment(text string) string {
	if i := strings.IndexAny(text, "#;"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// splitLabels peels "label:" prefixes off a line.
func splitLabels(text string) ([]string, string, error) {
	var labels []string
	for {
		name, rest, ok := strings.Cut(text, ":")
		if !ok {
			return labels, text, nil
		}
		name = strings.TrimSpace(name)
		if !isLabel(name) {
			return nil, "", fmt.Errorf("invalid label %q", name)
		}
		labels = append(labels, name)
		text = strings.TrimSpace(rest)
	}
}

func isLabel(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '.':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
