// Command vmsim runs synthetic address-translation workloads against a
// functional model of a CPU virtual-memory subsystem and reports how its
// paging-structure caches behave.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "vmsim",
	Short: "vmsim runs address-translation workloads against a model of " +
		"a CPU virtual-memory subsystem.",
	Long: `vmsim builds a multi-level page table in simulated memory, walks ` +
		`it for a synthetic address stream, and reports the behavior of the ` +
		`paging-structure caches that accelerate the walks.`,
}

func main() {
	// A .env file can pre-set VMSIM_* variables used as flag defaults.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
