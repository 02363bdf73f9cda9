package pipeline

import (
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// instructionStride is the byte distance between instructions.
const instructionStride = 4

// fetch queues up to FetchWidth instructions from the PC.
func (p *Pipeline) fetch() {
	for i := 0; i < p.config.FetchWidth; i++ {
		text, ok := p.program.At(p.pc)
		if !ok {
			return
		}
		p.decodeQueue = append(p.decodeQueue, fetchedInst{pc: p.pc, text: text})
		p.logger.Debug("fetch", "cycle", p.cycle, "pc", p.pc, "inst", text)
		p.pc += instructionStride
		p.stats.Fetched++
	}
}

// rename decodes and renames the whole decode queue in program order. It
// stops at the first instruction that needs more physical registers than
// are free, leaving it at the front of the queue.
func (p *Pipeline) rename() error {
	for len(p.decodeQueue) > 0 {
		f := p.decodeQueue[0]

		inst, err := p.decoder.Decode(f.text)
		if err != nil {
			return fmt.Errorf("cycle %d: pc %d: %w", p.cycle, f.pc, err)
		}

		if need := p.registersNeeded(inst); p.freeList.Len() < need {
			if p.rob.Empty() && len(p.instQueue) == 0 {
				return fmt.Errorf("cycle %d: %q needs %d registers, %d free: %w",
					p.cycle, inst.Text, need, p.freeList.Len(), ErrOutOfRegisters)
			}
			p.countStall(NoFreePhysicalRegister)
			return nil
		}

		r := &renamedInst{id: p.nextID, pc: f.pc, inst: inst, dest: NoReg}
		p.nextID++

		r.src1, r.imm1, err = p.renameSource(inst.Src1)
		if err != nil {
			return err
		}
		r.src2, r.imm2, err = p.renameSource(inst.Src2)
		if err != nil {
			return err
		}

		if inst.Op.WritesRegister() {
			reg, _ := p.freeList.Pop()
			p.regs.bind(reg, true)
			p.rat.Push(inst.Dest, reg)
			r.dest = reg
		}

		p.decodeQueue = p.decodeQueue[1:]
		p.instQueue = append(p.instQueue, r)
		p.stats.Renamed++
		p.logger.Debug("rename", "cycle", p.cycle, "pc", f.pc, "inst", inst.Text,
			"id", r.id, "dest", r.dest.String())

		if inst.Op.IsBranch() {
			if p.predictBranch(r) {
				break
			}
		}
	}
	return nil
}

// predictBranch records a prediction for r. A taken prediction redirects
// fetch and discards the instructions fetched behind the branch; it then
// returns true.
func (p *Pipeline) predictBranch(r *renamedInst) bool {
	target, err := r.inst.Target()
	if err != nil {
		target = r.pc + instructionStride
	}

	r.prediction = p.branchPredictor.Predict(r.pc, target)
	if !r.prediction.Taken {
		return false
	}

	p.logger.Debug("predict taken", "cycle", p.cycle, "pc", r.pc, "target", r.prediction.Target)
	p.pc = r.prediction.Target
	p.decodeQueue = nil
	return true
}

// registersNeeded counts the registers renaming inst would allocate: one
// per distinct unmapped source plus the destination.
func (p *Pipeline) registersNeeded(inst *insts.Instruction) int {
	need := 0
	var counted string
	for _, tok := range []string{inst.Src1, inst.Src2} {
		if !insts.IsRegister(tok) || tok == counted {
			continue
		}
		if _, ok := p.rat.Current(tok); !ok {
			need++
			counted = tok
		}
	}
	if inst.Op.WritesRegister() {
		need++
	}
	return need
}

// renameSource resolves a source token. Registers map to their active
// rename; a name never seen before is bound to a fresh zero-valued
// register. Literals are returned as values with NoReg.
func (p *Pipeline) renameSource(tok string) (PhysReg, float64, error) {
	if !insts.IsRegister(tok) {
		v, err := insts.ParseImmediate(tok)
		if err != nil {
			return NoReg, 0, fmt.Errorf("cycle %d: %w", p.cycle, err)
		}
		return NoReg, v, nil
	}

	if reg, ok := p.rat.Current(tok); ok {
		return reg, 0, nil
	}

	reg, ok := p.freeList.Pop()
	if !ok {
		return NoReg, 0, p.invariantf("no free register for source %s after reservation", tok)
	}
	p.regs.bind(reg, false)
	p.rat.Push(tok, reg)
	return reg, 0, nil
}
