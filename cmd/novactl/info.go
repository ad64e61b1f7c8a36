package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novacad/nova"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Print topology and volume statistics of a model file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := loadModel(args[0])
		if err != nil {
			return err
		}
		defer body.Release()
		raw := body.Raw()
		fmt.Printf("file:     %s\n", args[0])
		fmt.Printf("vertices: %d\n", raw.VertexCount())
		fmt.Printf("edges:    %d\n", raw.EdgeCount())
		fmt.Printf("faces:    %d\n", raw.FaceCount())
		fmt.Printf("shells:   %d\n", raw.ShellCount())
		fmt.Printf("genus:    %d\n", raw.Genus())
		fmt.Printf("closed:   %v\n", raw.IsClosedSolid())
		bb, err := body.BoundingBox()
		if err != nil {
			return err
		}
		fmt.Printf("bounds:   min(%.6g %.6g %.6g) max(%.6g %.6g %.6g)\n",
			bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
		if raw.IsClosedSolid() {
			vol, _ := body.Volume()
			fmt.Printf("volume:   %.6g\n", vol)
		}
		if issues := raw.Validate(nova.GetTolerance()); len(issues) > 0 {
			fmt.Printf("issues:   %d\n", len(issues))
			for _, s := range issues {
				fmt.Printf("  - %s\n", s)
			}
		} else {
			fmt.Println("issues:   none")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
