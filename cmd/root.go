package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payments",
	Short: "Payments microservice",
	Long:  "A payments microservice integrating the VNPay redirect gateway: session issuing, dual-channel confirmation, and lifecycle jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
