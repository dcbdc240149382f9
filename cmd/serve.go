package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/doge-tracker/internal/model"
	"github.com/sells-group/doge-tracker/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset and run history as a read-only JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st := store.NewCSVStore(cfg.Paths.Dataset, cfg.Paths.RawLog)
		runLog := store.NewRunLog(cfg.Paths.RunLog)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]string{"status": "ok"})
		})

		r.Get("/contracts", func(w http.ResponseWriter, req *http.Request) {
			snapshot, err := st.Load(req.Context())
			if err != nil {
				httpError(w, err)
				return
			}
			out := make([]contractJSON, 0, snapshot.Len())
			for _, rec := range snapshot.Records() {
				out = append(out, toContractJSON(rec))
			}
			writeJSON(w, out)
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := runLog.List(req.Context())
			if err != nil {
				httpError(w, err)
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, runs)
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Serve.Port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("serving status API", zap.Int("port", cfg.Serve.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// contractJSON is the wire shape for /contracts. Unknown amounts serialize
// as null, not zero.
type contractJSON struct {
	PIID        string   `json:"piid"`
	Agency      string   `json:"agency"`
	Vendor      string   `json:"vendor"`
	Value       *float64 `json:"value"`
	Description string   `json:"description"`
	FPDSStatus  string   `json:"fpds_status"`
	FPDSLink    string   `json:"fpds_link"`
	DeletedDate string   `json:"deleted_date,omitempty"`
	Savings     *float64 `json:"savings"`
}

func toContractJSON(rec model.ContractRecord) contractJSON {
	c := contractJSON{
		PIID:        rec.PIID,
		Agency:      rec.Agency,
		Vendor:      rec.Vendor,
		Description: rec.Description,
		FPDSStatus:  rec.FPDSStatus,
		FPDSLink:    rec.FPDSLink,
	}
	if rec.Value.Known {
		v := rec.Value.Amount
		c.Value = &v
	}
	if rec.Savings.Known {
		s := rec.Savings.Amount
		c.Savings = &s
	}
	if rec.DeletedDate != nil {
		c.DeletedDate = rec.DeletedDate.Format(model.DateFormat)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
