package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ByLCY/quire/geom"
)

func newBBoxCmd() *cobra.Command {
	var rotate, width, height float64

	cmd := &cobra.Command{
		Use:   "bbox",
		Short: "Print the bounding box of a rotated rectangle",
		Long: `Prints the axis-aligned bounding box of a width x height rectangle rotated
clockwise about its top-left corner, and the offset of that corner from the
lower-left corner of the box.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rot, err := geom.NewRotation(rotate)
			if err != nil {
				return err
			}
			offset, box := geom.BoundingBox(rot, geom.NewSize(width, height))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rotation: %s\n", rot)
			fmt.Fprintf(out, "bbox:     %.4f x %.4f\n", box.Width, box.Height)
			fmt.Fprintf(out, "offset:   %.4f, %.4f\n", offset.X, offset.Y)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&rotate, "rotate", "r", 0, "rotation in degrees, -180 to 180")
	cmd.Flags().Float64Var(&width, "width", 0, "rectangle width")
	cmd.Flags().Float64Var(&height, "height", 0, "rectangle height")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}
