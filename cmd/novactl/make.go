package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/novacad/nova"
)

var makeOut string

var makeCmd = &cobra.Command{
	Use:   "make KIND DIMS...",
	Short: "Generate a primitive solid and write it to --out",
	Long: `Generate a primitive solid:

  make box W H D
  make cylinder R H
  make sphere R
  make cone R1 R2 H
  make torus R r`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dims := make([]float64, 0, len(args)-1)
		for _, a := range args[1:] {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("bad dimension %q: %v", a, err)
			}
			dims = append(dims, v)
		}
		var body *nova.Body
		var err error
		switch args[0] {
		case "box":
			if len(dims) != 3 {
				return fmt.Errorf("box needs W H D")
			}
			body, err = nova.MakeBox(dims[0], dims[1], dims[2])
		case "cylinder":
			if len(dims) != 2 {
				return fmt.Errorf("cylinder needs R H")
			}
			body, err = nova.MakeCylinder(dims[0], dims[1])
		case "sphere":
			if len(dims) != 1 {
				return fmt.Errorf("sphere needs R")
			}
			body, err = nova.MakeSphere(dims[0])
		case "cone":
			if len(dims) != 3 {
				return fmt.Errorf("cone needs R1 R2 H")
			}
			body, err = nova.MakeCone(dims[0], dims[1], dims[2])
		case "torus":
			if len(dims) != 2 {
				return fmt.Errorf("torus needs R r")
			}
			body, err = nova.MakeTorus(dims[0], dims[1])
		default:
			return fmt.Errorf("unknown primitive %q", args[0])
		}
		if err != nil {
			return err
		}
		defer body.Release()
		if makeOut == "" {
			makeOut = args[0] + ".step"
		}
		switch ext(makeOut) {
		case ".step", ".stp":
			err = nova.ExportSTEP(body, makeOut)
		case ".stl":
			err = nova.ExportSTL(body, makeOut, chordTol)
		case ".nova":
			err = nova.SaveNative(body, makeOut)
		default:
			return fmt.Errorf("unknown output format %q", ext(makeOut))
		}
		if err != nil {
			return err
		}
		log.Printf("wrote %s", makeOut)
		return nil
	},
}

func init() {
	makeCmd.Flags().StringVar(&makeOut, "out", "", "output file (.step, .stl or .nova)")
	rootCmd.AddCommand(makeCmd)
}
