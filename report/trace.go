// Package report renders pipeline state for people: a per-cycle trace of
// every structure and an end-of-run summary.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// WriteCycle writes the state captured in s as a set of aligned tables.
func WriteCycle(w io.Writer, s pipeline.Snapshot) error {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "=== CYCLE %d  pc=%d ===\n", s.Cycle, s.PC)
	fmt.Fprintf(tw, "decode queue:\t%s\n", strings.Join(s.DecodeQueue, " | "))
	fmt.Fprintf(tw, "instruction queue:\t%s\n", strings.Join(s.InstructionQueue, " | "))
	fmt.Fprintf(tw, "free list:\t%s\n", joinRegs(s.FreeList))
	fmt.Fprintln(tw)

	writeAliasTable(tw, s)
	writeRegisters(tw, s)
	writeROB(tw, s)
	writeStations(tw, s)
	writeUnits(tw, s)
	writeCDB(tw, s)

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeAliasTable(tw *tabwriter.Writer, s pipeline.Snapshot) {
	fmt.Fprintln(tw, "REGISTER\tMAPPING")
	for _, name := range sortedNames(s.AliasTable) {
		fmt.Fprintf(tw, "%s\t%s\n", name, joinRegs(s.AliasTable[name]))
	}
	fmt.Fprintln(tw)
}

// writeRegisters lists only registers that are bound to a name.
func writeRegisters(tw *tabwriter.Writer, s pipeline.Snapshot) {
	bound := make(map[pipeline.PhysReg]bool)
	for _, chain := range s.AliasTable {
		for _, r := range chain {
			bound[r] = true
		}
	}

	fmt.Fprintln(tw, "PREG\tVALUE\tBUSY\tROB")
	for _, r := range s.Registers {
		if !bound[r.Tag] {
			continue
		}
		fmt.Fprintf(tw, "%v\t%g\t%t\t%s\n", r.Tag, r.Value, r.Busy, robTag(r.ROBTag))
	}
	fmt.Fprintln(tw)
}

func writeROB(tw *tabwriter.Writer, s pipeline.Snapshot) {
	fmt.Fprintln(tw, "ROB\tID\tINSTRUCTION\tSTATE\tDEST\tPREG\tVALUE\t")
	for _, e := range s.ROB {
		marker := ""
		if e.Slot == s.ROBHead {
			marker += "<head"
		}
		if e.Slot == s.ROBTail {
			marker += "<tail"
		}
		if !e.Busy && e.State == pipeline.ROBEmpty {
			fmt.Fprintf(tw, "%s\t-\t\t\t\t\t\t%s\n", e.Name(), marker)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%v\t%s\t%v\t%g\t%s\n",
			e.Name(), e.InstID, e.Text, e.State, e.Dest, e.Reg, e.Value, marker)
	}
	fmt.Fprintln(tw)
}

func writeStations(tw *tabwriter.Writer, s pipeline.Snapshot) {
	fmt.Fprintln(tw, "STATION\tBUSY\tREADY\tID\tINSTRUCTION\tSRC1\tSRC2\tROB")
	for _, st := range s.Stations {
		for _, e := range st.Entries {
			name := fmt.Sprintf("%v%d", st.Class, e.Slot)
			if !e.Busy {
				fmt.Fprintf(tw, "%s\tfalse\t\t\t\t\t\t\n", name)
				continue
			}
			fmt.Fprintf(tw, "%s\ttrue\t%t\t%d\t%s\t%v\t%v\t%s\n",
				name, e.Ready, e.InstID, e.Text, e.Src1, e.Src2, robTag(e.ROBTag))
		}
	}
	fmt.Fprintln(tw)
}

func writeUnits(tw *tabwriter.Writer, s pipeline.Snapshot) {
	fmt.Fprintln(tw, "UNIT\tCLASS\tINSTRUCTION\tPROGRESS")
	for _, u := range s.Units {
		if !u.Busy {
			fmt.Fprintf(tw, "%s\t-\tidle\t\n", u.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\n", u.Name, u.Class, u.Text, u.Elapsed, u.Latency)
	}
	fmt.Fprintln(tw)
}

func writeCDB(tw *tabwriter.Writer, s pipeline.Snapshot) {
	fmt.Fprintln(tw, "CDB\tROB\tPREG\tVALUE")
	for i, m := range s.CDB {
		fmt.Fprintf(tw, "%d\t%s\t%v\t%g\n", i, robTag(m.ROBTag), m.Reg, m.Value)
	}
	fmt.Fprintln(tw)
}

func joinRegs(regs []pipeline.PhysReg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

func robTag(tag int) string {
	if tag == pipeline.NoROBTag {
		return "-"
	}
	return fmt.Sprintf("ROB%d", tag)
}

// Tracer is an akita hook that writes a cycle table every time the core
// finishes a cycle. The first write error is kept and later cycles are
// skipped.
type Tracer struct {
	w   io.Writer
	err error
}

// NewTracer creates a tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Func implements sim.Hook.
func (t *Tracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != core.HookPosCycle || t.err != nil {
		return
	}

	snap, ok := ctx.Item.(pipeline.Snapshot)
	if !ok {
		return
	}
	t.err = WriteCycle(t.w, snap)
}

// Err returns the first write error.
func (t *Tracer) Err() error {
	return t.err
}

func sortedNames(m map[string][]pipeline.PhysReg) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
