package benchmarks

import (
	"fmt"

	"github.com/sarchlab/tomasim/emu"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a different part of the out-of-order core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticIndependent(),
		dependencyChain(),
		fpMix(),
		memoryStream(),
		branchTaken(),
		countedLoop(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick checks.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticIndependent(),
		dependencyChain(),
		countedLoop(),
	}
}

// 1. Independent ALU - five interleaved chains keep the integer unit busy
func arithmeticIndependent() Benchmark {
	var program []string
	for i := 0; i < 4; i++ {
		for r := 1; r <= 5; r++ {
			program = append(program, fmt.Sprintf("addi R%d, R%d, 1", r, r))
		}
	}

	return Benchmark{
		Name:        "arithmetic_independent",
		Description: "20 ADDIs over 5 registers - measures rename and ALU throughput",
		Program:     program,
		Expected:    map[string]float64{"R1": 4, "R5": 4},
	}
}

// 2. Dependency Chain - every instruction waits for the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDIs (R1 = R1 + 1) - measures wakeup latency",
		Program:     buildDependencyChain(20),
		Expected:    map[string]float64{"R1": 20},
	}
}

func buildDependencyChain(n int) []string {
	program := make([]string, n)
	for i := range program {
		program[i] = "addi R1, R1, 1"
	}
	return program
}

// 3. FP mix - independent work for every floating-point unit
func fpMix() Benchmark {
	return Benchmark{
		Name:        "fp_mix",
		Description: "Loads feeding FP add, multiply and divide - measures unit overlap",
		MemorySize:  16,
		Setup: func(memory *emu.Memory) {
			_ = memory.Write(0, 3)
			_ = memory.Write(8, 1.5)
		},
		Program: []string{
			"fld F1, 0(R0)",
			"fld F2, 8(R0)",
			"fadd F3, F1, F2",
			"fmul F4, F1, F2",
			"fdiv F5, F1, F2",
			"fsub F6, F1, F2",
			"fmul F7, F3, F4",
			"fadd F8, F5, F5",
			"fdiv F9, F7, F8",
		},
		Expected: map[string]float64{"F3": 4.5, "F4": 4.5, "F5": 2, "F6": 1.5, "F9": 5.0625},
	}
}

// 4. Memory stream - copy and scale an 8-word array
func memoryStream() Benchmark {
	program := []string{"addi R1, R0, 2"}
	for i := 0; i < 8; i++ {
		program = append(program,
			fmt.Sprintf("fld F%d, %d(R0)", i, i),
			fmt.Sprintf("fmul F%d, F%d, R1", i+8, i),
			fmt.Sprintf("fsd F%d, %d(R0)", i+8, i+8),
		)
	}

	return Benchmark{
		Name:        "memory_stream",
		Description: "8 load/multiply/store triples - measures the shared load/store unit",
		MemorySize:  16,
		Setup: func(memory *emu.Memory) {
			for i := 0; i < 8; i++ {
				_ = memory.Write(int64(i), float64(i+1))
			}
		},
		Program:  program,
		Expected: map[string]float64{"F15": 16},
	}
}

// 5. Branch taken - forward branches that skip poisoned instructions
func branchTaken() Benchmark {
	return Benchmark{
		Name:        "branch_taken",
		Description: "3 taken forward branches - measures misprediction recovery",
		Program: []string{
			"addi R1, R0, 1",
			"bne R1, R0, skip1",
			"addi R2, R0, 99",
			"skip1: addi R3, R0, 1",
			"bne R3, R0, skip2",
			"addi R2, R0, 99",
			"skip2: addi R4, R0, 1",
			"bne R4, R0, done",
			"addi R2, R0, 99",
			"done: add R5, R3, R4",
		},
		Expected: map[string]float64{"R5": 2},
	}
}

// 6. Counted loop - sum an array with a backward branch
func countedLoop() Benchmark {
	return Benchmark{
		Name:        "counted_loop",
		Description: "8-iteration array sum - measures prediction on a backward branch",
		MemorySize:  9,
		Setup: func(memory *emu.Memory) {
			for i := 0; i < 8; i++ {
				_ = memory.Write(int64(i), float64(i+1))
			}
		},
		Program: []string{
			"addi R1, R0, 8",
			"addi R2, R0, 0",
			"loop: fld F0, 0(R2)",
			"fadd F1, F1, F0",
			"addi R2, R2, 1",
			"addi R1, R1, -1",
			"bne R1, R0, loop",
			"fsd F1, 8(R0)",
		},
		Expected: map[string]float64{"F1": 36},
	}
}
