// Command novactl is a small shop tool over the nova kernel: inspect
// bodies, convert between STEP, STL and the native dump, and generate
// primitive solids.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/novacad/nova"
	"github.com/novacad/nova/nmath"
)

var rootCmd = &cobra.Command{
	Use:   "novactl",
	Short: "B-Rep kernel command line tool",
	Long: `novactl - nova kernel command line tool

Inspect, convert and generate solid models:
  - info: topology and volume statistics of a model file
  - convert: STEP / STL / native dump conversion
  - make: primitive solids (box, cylinder, sphere, cone, torus)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		tol := nmath.DefaultTolerance()
		if linearTol > 0 {
			tol.Linear = linearTol
		}
		if err := nova.Initialize(tol); err != nil && err != nova.ErrAlreadyInitialized {
			return err
		}
		return nil
	},
}

var linearTol float64

func init() {
	rootCmd.PersistentFlags().Float64Var(&linearTol, "tolerance", 0, "linear resolution override")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "novactl:", err)
		os.Exit(1)
	}
}
