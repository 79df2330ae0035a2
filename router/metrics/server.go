package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/router/qrouter"
	"github.com/pg-sharding/shardcore/router/routehint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PreviewRequest is the body of POST /preview.
type PreviewRequest struct {
	SQL        string `json:"sql"`
	Params     []any  `json:"params,omitempty"`
	DataSource string `json:"data_source,omitempty"`
}

type errorReply struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewHandler serves Prometheus metrics, a health check and statement
// previews planned by qr.
func NewHandler(qr qrouter.QueryRouter) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req PreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			reply(w, http.StatusBadRequest, errorReply{Code: sherror.SHARD_PARSE_ERROR, Error: err.Error()})
			return
		}
		var hint *routehint.HintContext
		if req.DataSource != "" {
			hint = &routehint.HintContext{DataSource: req.DataSource}
		}
		plan, err := qr.Plan(r.Context(), req.SQL, req.Params, hint)
		if err != nil {
			reply(w, http.StatusUnprocessableEntity, errorReply{Code: sherror.Code(err), Error: err.Error()})
			return
		}
		reply(w, http.StatusOK, plan)
	})

	return mux
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		shardlog.Zero.Error().Err(err).Msg("failed to write reply")
	}
}

// Serve runs the handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, qr qrouter.QueryRouter) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(qr),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shardlog.Zero.Info().
		Str("addr", addr).
		Msg("starting preview and metrics server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
