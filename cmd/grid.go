package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/geogrid"
	"github.com/localpulse/rankgrid-cli/internal/model"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Preview grid points without querying the provider",
	Long:  "Generates and prints the sampling grid for the given center, radius, size, and shape. Useful for eyeballing coverage before spending provider quota.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		radius, _ := cmd.Flags().GetFloat64("radius-km")
		gridSize, _ := cmd.Flags().GetInt("grid-size")
		shapeStr, _ := cmd.Flags().GetString("shape")

		shape, err := model.ParseShape(shapeStr)
		if err != nil {
			return err
		}

		points, err := geogrid.Generate(lat, lng, radius, gridSize, shape)
		if err != nil {
			return err
		}

		bounds, err := geogrid.Bounds(points)
		if err != nil {
			return err
		}

		zap.L().Info("grid generated",
			zap.Int("points", len(points)),
			zap.Float64("min_lat", bounds.Min(1)),
			zap.Float64("max_lat", bounds.Max(1)),
			zap.Float64("min_lng", bounds.Min(0)),
			zap.Float64("max_lng", bounds.Max(0)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	},
}

func init() {
	gridCmd.Flags().Float64("lat", 0, "grid center latitude")
	gridCmd.Flags().Float64("lng", 0, "grid center longitude")
	gridCmd.Flags().Float64("radius-km", 5, "grid radius in kilometers")
	gridCmd.Flags().Int("grid-size", 7, "grid size N (N×N points)")
	gridCmd.Flags().String("shape", "square", "grid shape: square or circular")
	rootCmd.AddCommand(gridCmd)
}
