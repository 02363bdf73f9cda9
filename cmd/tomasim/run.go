package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/report"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

type runOptions struct {
	programPath string
	memoryPath  string
	timingPath  string
	cpuProfile  string
	fetchWidth  int
	issueWidth  int
	robSize     int
	cdbWidth    int
	physRegs    int
	maxCycles   uint64
	predict     bool
	trace       bool
	verify      bool
}

func newRunCmd(logger func() (*slog.Logger, error)) *cobra.Command {
	defaults := pipeline.DefaultConfig()
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run --program <file> [--memory <file>]",
		Short: "Simulate one program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger()
			if err != nil {
				return err
			}
			return runSimulation(cmd, opts, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.programPath, "program", "", "Assembly program file")
	flags.StringVar(&opts.memoryPath, "memory", "", "Initial data memory file (address, value per line)")
	flags.StringVar(&opts.timingPath, "timing-config", "", "Timing configuration JSON file")
	flags.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	flags.IntVar(&opts.fetchWidth, "nf", defaults.FetchWidth, "Instructions fetched per cycle")
	flags.IntVar(&opts.issueWidth, "nw", defaults.DispatchWidth, "Instructions dispatched per cycle")
	flags.IntVar(&opts.robSize, "nr", defaults.ROBSize, "Reorder buffer entries")
	flags.IntVar(&opts.cdbWidth, "nb", defaults.CDBWidth, "Common data bus broadcasts per cycle")
	flags.IntVar(&opts.physRegs, "phys-regs", defaults.PhysicalRegisters, "Physical registers")
	flags.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = no limit)")
	flags.BoolVar(&opts.predict, "predict", false, "Enable branch prediction")
	flags.BoolVar(&opts.trace, "trace", false, "Print every structure after each cycle")
	flags.BoolVar(&opts.verify, "verify", false, "Check the final state against the functional emulator")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runSimulation(cmd *cobra.Command, opts runOptions, log *slog.Logger) error {
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("creating CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	prog, err := loader.LoadProgram(opts.programPath)
	if err != nil {
		return err
	}

	memory := emu.NewMemory(0)
	if opts.memoryPath != "" {
		memory, err = loader.LoadMemory(opts.memoryPath)
		if err != nil {
			return err
		}
	}
	initial := memory.Clone()

	timingConfig := latency.DefaultTimingConfig()
	if opts.timingPath != "" {
		timingConfig, err = latency.LoadConfig(opts.timingPath)
		if err != nil {
			return err
		}
	}

	cfg := pipeline.DefaultConfig()
	cfg.FetchWidth = opts.fetchWidth
	cfg.DispatchWidth = opts.issueWidth
	cfg.ROBSize = opts.robSize
	cfg.CDBWidth = opts.cdbWidth
	cfg.PhysicalRegisters = opts.physRegs
	cfg.BranchPrediction = opts.predict
	cfg.MaxCycles = opts.maxCycles

	log.Info("starting simulation", "program", opts.programPath, "instructions", prog.Len(),
		"nf", cfg.FetchWidth, "nw", cfg.DispatchWidth, "nr", cfg.ROBSize, "nb", cfg.CDBWidth,
		"predict", cfg.BranchPrediction)

	engine := sim.NewSerialEngine()
	c, err := core.NewCore("Core", engine, 1*sim.GHz, prog, memory,
		pipeline.WithConfig(cfg),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(timingConfig)),
		pipeline.WithLogger(log),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var tracer *report.Tracer
	if opts.trace {
		tracer = report.NewTracer(out)
		c.AcceptHook(tracer)
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	if tracer != nil && tracer.Err() != nil {
		return fmt.Errorf("writing trace: %w", tracer.Err())
	}

	summary := report.NewSummary(opts.programPath, c.Pipeline)

	var mismatches []emu.Mismatch
	if opts.verify {
		ref := emu.NewEmulator(prog, initial)
		if err := ref.Run(); err != nil {
			return fmt.Errorf("reference run: %w", err)
		}
		mismatches = ref.Compare(summary.Registers, summary.Memory)
		verified := len(mismatches) == 0
		summary.Verified = &verified
	}

	if err := report.WriteSummary(out, summary); err != nil {
		return err
	}

	for _, m := range mismatches {
		log.Error("verification mismatch", "detail", m.String())
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("verification failed: %d mismatches", len(mismatches))
	}
	return nil
}
