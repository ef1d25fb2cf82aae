package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the spotrisk CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spotrisk version %s\n", version)
		fmt.Println("A position risk and execution engine for spot markets")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
