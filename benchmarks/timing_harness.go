// Package benchmarks runs micro-programs through the out-of-order core
// across a sweep of machine widths and buffer sizes.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Point names the machine configuration the benchmark ran on
	Point            string `json:"point"`
	FetchWidth       int    `json:"fetch_width"`
	DispatchWidth    int    `json:"dispatch_width"`
	ROBSize          int    `json:"rob_size"`
	CDBWidth         int    `json:"cdb_width"`
	BranchPrediction bool   `json:"branch_prediction"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsCommitted is the number of instructions that left the ROB
	InstructionsCommitted uint64 `json:"instructions_committed"`

	CPI float64 `json:"cpi"`
	IPC float64 `json:"ipc"`

	// Stall counters, one per structural hazard
	RegisterStalls uint64 `json:"register_stalls"`
	ROBStalls      uint64 `json:"rob_stalls"`
	RSStalls       uint64 `json:"rs_stalls"`
	CDBStalls      uint64 `json:"cdb_stalls"`

	Flushes  uint64 `json:"flushes"`
	Squashed uint64 `json:"squashed"`

	// Branch predictor stats
	BranchPredictions     uint64  `json:"branch_predictions,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// Verified is true when the final state matched the functional emulator
	Verified bool `json:"verified"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the assembly source, one instruction per entry
	Program []string

	// MemorySize is the number of data memory words
	MemorySize int

	// Setup initializes data memory
	Setup func(memory *emu.Memory)

	// Expected lists architected register values the run must produce
	Expected map[string]float64
}

// SweepPoint is one machine configuration in a sweep.
type SweepPoint struct {
	Label  string
	Config pipeline.Config
}

// DefaultSweep varies one parameter at a time around the default machine.
func DefaultSweep() []SweepPoint {
	point := func(label string, nf, nw, rob, cdb int, predict bool) SweepPoint {
		cfg := pipeline.DefaultConfig()
		cfg.FetchWidth = nf
		cfg.DispatchWidth = nw
		cfg.ROBSize = rob
		cfg.CDBWidth = cdb
		cfg.BranchPrediction = predict
		return SweepPoint{Label: label, Config: cfg}
	}

	return []SweepPoint{
		point("scalar", 1, 1, 16, 1, false),
		point("2-wide", 2, 2, 16, 2, false),
		point("4-wide", 4, 4, 16, 4, false),
		point("4-wide+bp", 4, 4, 16, 4, true),
		point("small-rob", 4, 4, 4, 4, false),
		point("narrow-cdb", 4, 4, 16, 1, false),
		point("8-wide", 8, 8, 32, 8, true),
	}
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Points are the machine configurations to run every benchmark on
	Points []SweepPoint

	// Timing sets per-class latencies and station sizes
	Timing *latency.TimingConfig

	// MaxCycles bounds each run; 0 means no limit
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives harness progress at Info level
	Logger *slog.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Points:    DefaultSweep(),
		Timing:    latency.DefaultTimingConfig(),
		MaxCycles: 100000,
		Output:    os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if len(config.Points) == 0 {
		config.Points = []SweepPoint{{Label: "default", Config: pipeline.DefaultConfig()}}
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark on every sweep point. Results are ordered
// by benchmark, then by point.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks)*len(h.config.Points))

	for _, bench := range h.benchmarks {
		for _, point := range h.config.Points {
			result, err := h.runBenchmark(bench, point)
			if err != nil {
				return results, fmt.Errorf("%s on %s: %w", bench.Name, point.Label, err)
			}
			results = append(results, result)
		}
	}

	return results, nil
}

func (bench Benchmark) memory() *emu.Memory {
	memory := emu.NewMemory(bench.MemorySize)
	if bench.Setup != nil {
		bench.Setup(memory)
	}
	return memory
}

// runBenchmark executes a single benchmark on one configuration and checks
// it against the functional emulator.
func (h *Harness) runBenchmark(bench Benchmark, point SweepPoint) (BenchmarkResult, error) {
	prog, err := loader.NewProgram(bench.Program...)
	if err != nil {
		return BenchmarkResult{}, err
	}

	cfg := point.Config
	cfg.MaxCycles = h.config.MaxCycles

	pipe, err := pipeline.NewPipeline(prog, bench.memory(),
		pipeline.WithConfig(cfg),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(h.config.Timing)),
	)
	if err != nil {
		return BenchmarkResult{}, err
	}

	start := time.Now()
	err = pipe.Run()
	wallTime := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	regs := pipe.ArchitectedRegisters()
	for name, want := range bench.Expected {
		if got := regs[name]; got != want {
			return BenchmarkResult{}, fmt.Errorf("%s = %g, want %g", name, got, want)
		}
	}

	ref := emu.NewEmulator(prog, bench.memory())
	if err := ref.Run(); err != nil {
		return BenchmarkResult{}, fmt.Errorf("reference run: %w", err)
	}
	mismatches := ref.Compare(regs, pipe.Memory().Snapshot())

	stats := pipe.Stats()
	bp := pipe.BranchPredictor().Stats()
	result := BenchmarkResult{
		Name:                  bench.Name,
		Description:           bench.Description,
		Point:                 point.Label,
		FetchWidth:            cfg.FetchWidth,
		DispatchWidth:         cfg.DispatchWidth,
		ROBSize:               cfg.ROBSize,
		CDBWidth:              cfg.CDBWidth,
		BranchPrediction:      cfg.BranchPrediction,
		SimulatedCycles:       stats.Cycles,
		InstructionsCommitted: stats.Instructions,
		CPI:                   stats.CPI(),
		IPC:                   stats.IPC(),
		RegisterStalls:        stats.RegisterStalls,
		ROBStalls:             stats.ROBStalls,
		RSStalls:              stats.RSStalls,
		CDBStalls:             stats.CDBStalls,
		Flushes:               stats.Flushes,
		Squashed:              stats.Squashed,
		BranchPredictions:     bp.Predictions,
		BranchMispredictions:  bp.Mispredictions,
		BranchAccuracyPercent: bp.Accuracy(),
		Verified:              len(mismatches) == 0,
		WallTime:              wallTime,
	}

	h.config.Logger.Info("benchmark done", "name", bench.Name, "point", point.Label,
		"cycles", result.SimulatedCycles, "ipc", result.IPC, "verified", result.Verified)
	for _, m := range mismatches {
		h.config.Logger.Warn("verification mismatch", "name", bench.Name, "point", point.Label,
			"detail", m.String())
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Tomasulo Core Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, r.Point)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Machine: NF=%d NW=%d ROB=%d CDB=%d predict=%t\n",
			r.FetchWidth, r.DispatchWidth, r.ROBSize, r.CDBWidth, r.BranchPrediction)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:       %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Committed: %d\n", r.InstructionsCommitted)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                    %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  IPC:                    %.3f\n", r.IPC)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Stalls ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Register: %d\n", r.RegisterStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  ROB:      %d\n", r.ROBStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  RS:       %d\n", r.RSStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  CDB:      %d\n", r.CDBStalls)

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Branches ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Predictions:     %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
			_, _ = fmt.Fprintf(h.config.Output, "  Flushes:         %d (%d squashed)\n", r.Flushes, r.Squashed)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Verified: %t\n", r.Verified)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,point,nf,nw,rob,cdb,predict,cycles,instructions,cpi,ipc,register_stalls,rob_stalls,rs_stalls,cdb_stalls,flushes,squashed,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%d,%t,%d,%d,%.3f,%.3f,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.Point,
			r.FetchWidth,
			r.DispatchWidth,
			r.ROBSize,
			r.CDBWidth,
			r.BranchPrediction,
			r.SimulatedCycles,
			r.InstructionsCommitted,
			r.CPI,
			r.IPC,
			r.RegisterStalls,
			r.ROBStalls,
			r.RSStalls,
			r.CDBStalls,
			r.Flushes,
			r.Squashed,
			r.Verified,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Points lists the sweep labels in run order
	Points []string `json:"points"`

	// Timing is the latency and station configuration
	Timing *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalRuns is the number of benchmark and point pairs run
	TotalRuns int `json:"total_runs"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions committed
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the cycle-weighted cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// AllVerified is true when every run matched the functional emulator
	AllVerified bool `json:"all_verified"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	allVerified := true
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsCommitted
		totalWallTime += r.WallTime
		allVerified = allVerified && r.Verified
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	points := make([]string, len(h.config.Points))
	for i, p := range h.config.Points {
		points[i] = p.Label
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Points:    points,
			Timing:    h.config.Timing,
		},
		Results: results,
		Summary: ReportSummary{
			TotalRuns:         len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			AllVerified:       allVerified,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
