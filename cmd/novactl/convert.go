package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/novacad/nova"
	"github.com/novacad/nova/exchange"
	"github.com/novacad/nova/tess"
)

var (
	chordTol float64
	angleTol float64
	asciiSTL bool
)

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Convert between STEP, STL and native dump by extension",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]
		body, err := loadModel(in)
		if err != nil {
			return err
		}
		defer body.Release()
		log.Printf("loaded %s", in)
		switch ext(out) {
		case ".step", ".stp":
			err = nova.ExportSTEP(body, out)
		case ".stl":
			var mesh *tess.Mesh
			mesh, err = nova.Tessellate(body, chordTol, angleTol)
			if err == nil {
				log.Printf("tessellated %d triangles", mesh.TriangleCount())
				err = exchange.ExportSTL(mesh, out, asciiSTL)
			}
		case ".nova":
			err = nova.SaveNative(body, out)
		default:
			return fmt.Errorf("unknown output format %q", ext(out))
		}
		if err != nil {
			return err
		}
		log.Printf("wrote %s", out)
		return nil
	},
}

func init() {
	convertCmd.Flags().Float64Var(&chordTol, "chord", 1e-3, "tessellation chord tolerance")
	convertCmd.Flags().Float64Var(&angleTol, "angle", 0.35, "tessellation angle tolerance (radians)")
	convertCmd.Flags().BoolVar(&asciiSTL, "ascii", false, "write ASCII STL")
	rootCmd.AddCommand(convertCmd)
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func loadModel(path string) (*nova.Body, error) {
	switch ext(path) {
	case ".step", ".stp":
		return nova.ImportSTEP(path)
	case ".nova":
		return nova.LoadNative(path)
	}
	return nil, fmt.Errorf("unknown input format %q", ext(path))
}
