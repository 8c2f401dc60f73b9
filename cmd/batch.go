package main

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// batchFile is the YAML shape of a multi-keyword check request.
type batchFile struct {
	Business string `yaml:"business"`
	Center   struct {
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	} `yaml:"center"`
	RadiusKM float64  `yaml:"radius_km"`
	GridSize int      `yaml:"grid_size"`
	Shape    string   `yaml:"shape"`
	Keywords []string `yaml:"keywords"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run grid checks for every keyword in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("provider"); err != nil {
			return err
		}
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		bf, err := loadBatchFile(args[0])
		if err != nil {
			return err
		}

		shape, err := model.ParseShape(bf.Shape)
		if err != nil {
			return err
		}

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = 2
		}

		log := zap.L().With(zap.String("command", "batch"), zap.String("business", bf.Business))
		log.Info("starting batch",
			zap.Int("keywords", len(bf.Keywords)),
			zap.Int("concurrency", concurrency),
		)

		client := newProvider(cfg, bf.Business)
		engine := newEngine(cfg, client)

		var succeeded, failed atomic.Int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, keyword := range bf.Keywords {
			g.Go(func() error {
				kLog := log.With(zap.String("keyword", keyword))

				report, err := engine.Run(gctx, model.CheckRequest{
					Keyword:      keyword,
					BusinessName: bf.Business,
					CenterLat:    bf.Center.Lat,
					CenterLng:    bf.Center.Lng,
					RadiusKM:     bf.RadiusKM,
					GridSize:     bf.GridSize,
					Shape:        shape,
					Concurrency:  cfg.Check.Concurrency,
					Deadline:     time.Duration(cfg.Check.DeadlineSecs) * time.Second,
				})
				if err != nil {
					failed.Add(1)
					kLog.Error("grid check failed", zap.Error(err))
					return nil // don't abort the batch on individual failure
				}

				if err := st.SaveReport(gctx, report); err != nil {
					kLog.Error("save report failed", zap.Error(err))
				}

				succeeded.Add(1)
				kLog.Info("grid check complete",
					zap.String("run_id", report.ID),
					zap.Float64("visibility", report.Metrics.VisibilityScore),
					zap.Float64("completion_rate", report.CompletionRate),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch: wait for checks")
		}

		log.Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func loadBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read file %s", path)
	}

	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, eris.Wrap(err, "batch: parse file")
	}

	if bf.Business == "" {
		return nil, eris.New("batch: business is required")
	}
	if len(bf.Keywords) == 0 {
		return nil, eris.New("batch: at least one keyword is required")
	}
	if bf.GridSize == 0 {
		bf.GridSize = 7
	}
	if bf.RadiusKM == 0 {
		bf.RadiusKM = 5
	}
	if bf.Shape == "" {
		bf.Shape = "square"
	}
	return &bf, nil
}

func init() {
	batchCmd.Flags().Int("concurrency", 2, "max concurrent keyword checks")
	rootCmd.AddCommand(batchCmd)
}
