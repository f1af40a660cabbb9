package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom runs LLM-driven state-machine workflows",
	Long:  `Loom drives multi-step agent workflows: named states with model-chosen transitions, composable actions, status streaming and cooperative cancellation.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("redis", "", "Redis address for durable kill-switch and resume stores (empty: in-memory)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}
