package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/fastygo/planner/cmd/planner/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "planner",
		Short:         "Routine planner schedule service",
		Long:          "Planner materializes upcoming occurrences of recurring activities and marks past ones as missed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMaterializeCommand())
	rootCmd.AddCommand(commands.NewSweepCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "planner: %v\n", err)
		os.Exit(1)
	}
}
