package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"cashledger/logx"
)

var rootCmd = &cobra.Command{
	Use:   "cashledger",
	Short: "Cash ledger node CLI",
	Long:  "Command line interface for running and managing a cash ledger node.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
