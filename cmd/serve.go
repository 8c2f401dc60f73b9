package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/model"
	"github.com/localpulse/rankgrid-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for grid check requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("provider"); err != nil {
			return err
		}
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Set up routes
		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /v1/checks", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Keyword  string  `json:"keyword"`
				Business string  `json:"business"`
				Lat      float64 `json:"lat"`
				Lng      float64 `json:"lng"`
				RadiusKM float64 `json:"radius_km"`
				GridSize int     `json:"grid_size"`
				Shape    string  `json:"shape"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}

			if req.Keyword == "" || req.Business == "" {
				http.Error(w, `{"error":"keyword and business are required"}`, http.StatusBadRequest)
				return
			}

			check, err := checkRequestFromAPI(req.Keyword, req.Business, req.Lat, req.Lng, req.RadiusKM, req.GridSize, req.Shape)
			if err != nil {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
				return
			}

			// Run the grid check asynchronously; the caller fetches the
			// report later via GET /v1/runs/{id}.
			go func() {
				client := newProvider(cfg, check.BusinessName)
				engine := newEngine(cfg, client)

				report, err := engine.Run(ctx, check)
				if err != nil {
					zap.L().Error("async grid check failed",
						zap.String("keyword", check.Keyword),
						zap.Error(err),
					)
					return
				}
				if err := st.SaveReport(ctx, report); err != nil {
					zap.L().Error("save report failed",
						zap.String("run_id", report.ID),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("async grid check complete",
					zap.String("run_id", report.ID),
					zap.String("keyword", check.Keyword),
					zap.Float64("visibility", report.Metrics.VisibilityScore),
				)
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"status":  "accepted",
				"keyword": req.Keyword,
			})
		})

		mux.HandleFunc("GET /v1/runs", func(w http.ResponseWriter, r *http.Request) {
			limit := 50
			runs, err := st.ListRuns(r.Context(), store.RunFilter{
				Keyword: r.URL.Query().Get("keyword"),
				Limit:   limit,
			})
			if err != nil {
				http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(runs)
		})

		mux.HandleFunc("GET /v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			report, err := st.GetReport(r.Context(), r.PathValue("id"))
			if err != nil {
				if errors.Is(err, store.ErrRunNotFound) {
					http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
					return
				}
				http.Error(w, `{"error":"get run failed"}`, http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(report)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// checkRequestFromAPI fills API-omitted fields from config and validates.
func checkRequestFromAPI(keyword, business string, lat, lng, radiusKM float64, gridSize int, shapeStr string) (model.CheckRequest, error) {
	if radiusKM == 0 {
		radiusKM = cfg.Check.RadiusKM
	}
	if gridSize == 0 {
		gridSize = cfg.Check.GridSize
	}
	if shapeStr == "" {
		shapeStr = cfg.Check.Shape
	}
	shape, err := model.ParseShape(shapeStr)
	if err != nil {
		return model.CheckRequest{}, err
	}

	req := model.CheckRequest{
		Keyword:      keyword,
		BusinessName: business,
		CenterLat:    lat,
		CenterLng:    lng,
		RadiusKM:     radiusKM,
		GridSize:     gridSize,
		Shape:        shape,
		Concurrency:  cfg.Check.Concurrency,
		Deadline:     time.Duration(cfg.Check.DeadlineSecs) * time.Second,
	}
	if err := req.Validate(); err != nil {
		return model.CheckRequest{}, err
	}
	return req, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
