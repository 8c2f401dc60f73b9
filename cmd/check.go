package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one geo-grid rank check",
	Long:  "Generates a sampling grid around the given center, queries the ranking provider at every point, and prints the aggregated report as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("provider"); err != nil {
			return err
		}
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "check"))

		client := newProvider(cfg, req.BusinessName)
		engine := newEngine(cfg, client)

		report, err := engine.Run(ctx, req)
		if err != nil {
			return eris.Wrap(err, "check: run grid check")
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			st, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.SaveReport(ctx, report); err != nil {
				return eris.Wrap(err, "check: save report")
			}
			log.Info("report saved", zap.String("run_id", report.ID))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// requestFromFlags builds a CheckRequest from command flags, falling back to
// configured defaults.
func requestFromFlags(cmd *cobra.Command) (model.CheckRequest, error) {
	keyword, _ := cmd.Flags().GetString("keyword")
	business, _ := cmd.Flags().GetString("business")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")

	radius, _ := cmd.Flags().GetFloat64("radius-km")
	if radius == 0 {
		radius = cfg.Check.RadiusKM
	}
	gridSize, _ := cmd.Flags().GetInt("grid-size")
	if gridSize == 0 {
		gridSize = cfg.Check.GridSize
	}
	shapeStr, _ := cmd.Flags().GetString("shape")
	if shapeStr == "" {
		shapeStr = cfg.Check.Shape
	}
	shape, err := model.ParseShape(shapeStr)
	if err != nil {
		return model.CheckRequest{}, err
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Check.Concurrency
	}

	return model.CheckRequest{
		Keyword:      keyword,
		BusinessName: business,
		CenterLat:    lat,
		CenterLng:    lng,
		RadiusKM:     radius,
		GridSize:     gridSize,
		Shape:        shape,
		Concurrency:  concurrency,
		Deadline:     time.Duration(cfg.Check.DeadlineSecs) * time.Second,
	}, nil
}

func init() {
	checkCmd.Flags().String("keyword", "", "search keyword (required)")
	checkCmd.Flags().String("business", "", "target business name (required)")
	checkCmd.Flags().Float64("lat", 0, "grid center latitude")
	checkCmd.Flags().Float64("lng", 0, "grid center longitude")
	checkCmd.Flags().Float64("radius-km", 0, "grid radius in kilometers")
	checkCmd.Flags().Int("grid-size", 0, "grid size N (N×N points)")
	checkCmd.Flags().String("shape", "", "grid shape: square or circular")
	checkCmd.Flags().Int("concurrency", 0, "max concurrent point queries")
	checkCmd.Flags().Bool("save", false, "persist the report to the run store")
	_ = checkCmd.MarkFlagRequired("keyword")
	_ = checkCmd.MarkFlagRequired("business")
	rootCmd.AddCommand(checkCmd)
}
