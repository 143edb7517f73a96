package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seatwatch",
	Short: "Intercity bus seat availability watcher",
	Long: `seatwatch polls the intercity bus reservation site for seat
availability on behalf of submitted watch jobs, retrying every few
minutes until seats appear or the departure time passes.`,
}

func main() {
	settingDefaultConfig()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
