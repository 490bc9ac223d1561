package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kart-io/errmonitor/pkg/health"
	"github.com/kart-io/errmonitor/pkg/source/natsource"
)

type serveOptions struct {
	listen      string
	noNATS      bool
	probeTimeout time.Duration
}

func newServeCommand(a *app) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume events from NATS and dispatch them until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, o)
		},
	}
	cmd.Flags().StringVar(&o.listen, "listen", ":9090", "address for /metrics, /healthz and /stats")
	cmd.Flags().BoolVar(&o.noNATS, "no-nats", false, "serve the admin endpoints without subscribing to NATS")
	cmd.Flags().DurationVar(&o.probeTimeout, "health-timeout", 10*time.Second, "timeout for a /healthz probe")
	return cmd
}

func (a *app) serve(ctx context.Context, o *serveOptions) error {
	p, err := newPipeline(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	p.appender.Start()

	var source *natsource.Source
	if !o.noNATS {
		nc := natsource.DefaultConfig()
		nc.URL = a.cfg.NATS.URL
		nc.Subject = a.cfg.NATS.Subject
		conn, err := natsource.Connect(nc, a.logger)
		if err != nil {
			p.close(context.Background())
			return err
		}
		defer conn.Close()
		source = natsource.New(conn, a.cfg.NATS.Subject, a.cfg.NATS.Queue, p.monitor, a.logger)
		if err := source.Start(); err != nil {
			p.close(context.Background())
			return err
		}
	}

	srv := &http.Server{
		Addr:              o.listen,
		Handler:           a.adminMux(p, source, o.probeTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("Admin server listening", "addr", o.listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Admin server failed", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Async.ShutdownTimeout+5*time.Second)
	defer cancel()

	if source != nil {
		if err := source.Close(); err != nil {
			a.logger.Warn("NATS drain failed", "error", err)
		}
	}
	_ = srv.Shutdown(shutdownCtx)
	p.close(shutdownCtx)
	return nil
}

func (a *app) adminMux(p *pipeline, source *natsource.Source, probeTimeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	if p.prometheus != nil {
		mux.Handle("/metrics", p.prometheus.Handler())
	}

	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	checker := health.NewChecker(p.registry, a.cfg.Destinations, a.logger)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()
		status := checker.Check(ctx)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"metrics": p.memory.Snapshot()}
		if exec := p.appender.Executor(); exec != nil {
			body["executor"] = exec.Stats()
		}
		if source != nil {
			body["source"] = source.Stats()
		}
		writeJSON(w, http.StatusOK, body)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
