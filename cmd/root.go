package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timewise-hr",
	Short: "HR/payroll approval workflow API server",
	Long: `Timewise HR is a REST API server for K-12 district HR/payroll
approval workflows. It moves time cards, substitute time cards, monthly
time cards and leave requests through role-gated approval stages up to
payroll processing.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCmd 返回根命令(用于测试)
func GetRootCmd() *cobra.Command {
	return rootCmd
}
