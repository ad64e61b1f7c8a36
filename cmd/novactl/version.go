package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novacad/nova"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kernel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("novactl v%s\n", nova.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
