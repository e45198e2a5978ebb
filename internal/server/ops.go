package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer serves the operational HTTP surface: liveness and metrics.
// It is separate from the MCP transport so scrapers never touch stdio.
type OpsServer struct {
	srv *http.Server
	log logr.Logger
}

// NewOpsServer builds the ops listener for the given address.
func NewOpsServer(addr string, app *App, log logr.Logger) *OpsServer {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"version":  Version,
			"sessions": len(app.Coordinator.GetAllSessions()),
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(
		app.Metrics.Registry(),
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)

	return &OpsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start runs the listener until Shutdown is called.
func (o *OpsServer) Start() error {
	o.log.Info("ops server listening", "addr", o.srv.Addr)
	if err := o.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (o *OpsServer) Shutdown(ctx context.Context) error {
	return o.srv.Shutdown(ctx)
}
