package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "ndpwalk",
	Short: "ndpwalk drives the TLB/MMU address-translation core.",
	Long: "ndpwalk exercises the TLB/MMU address-translation core outside " +
		"of a full NDP simulator: functional single-shot translation, " +
		"cycle-accurate trace replay, and a read-only stats server.",
}

func init() {
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}
