package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "crowdfund",
		Short:   "Browse and watch crowdfunding campaigns",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("api", "", "API base URL (default $API_BASE_URL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log sync activity to stderr")

	// Add subcommands
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(categoriesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
