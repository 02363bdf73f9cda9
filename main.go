// Package main provides the entry point for tomasim.
// tomasim is a cycle-stepped Tomasulo out-of-order core simulator built on
// Akita.
//
// For the full CLI, use: go run ./cmd/tomasim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("tomasim - Tomasulo out-of-order core simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: tomasim <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run     Simulate one program and print the end-of-run summary")
	fmt.Println("  bench   Sweep the built-in micro-programs over machine configurations")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomasim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomasim' instead.")
	}
}
