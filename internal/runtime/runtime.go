package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/RuliLG/docc/internal/bus"
	"github.com/RuliLG/docc/internal/config"
	"github.com/RuliLG/docc/internal/natsserver"
	"github.com/RuliLG/docc/internal/scriptgen"
	"github.com/RuliLG/docc/internal/server"
	"github.com/RuliLG/docc/internal/sessionstore"
	"github.com/RuliLG/docc/internal/synthesis"
)

// Runtime composes the daemon: telemetry, the optional event bus, the
// session store, generation services and the HTTP API.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	telemetryClose func(context.Context) error
	embeddedNATS   *natsserver.EmbeddedServer
	busClient      *bus.Client
	store          *sessionstore.Store
	httpAPI        *server.Server
	metricsServer  *http.Server
	wg             sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{cfg: cfg, logger: logger}
}

// Start brings every component up and blocks until ctx is cancelled, then
// tears them down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	telemetryClose, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = telemetryClose

	if r.cfg.Bus.Enabled {
		if err := r.startBus(ctx); err != nil {
			return err
		}
	}

	store, err := sessionstore.Open(ctx, r.cfg.Sessions, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	r.store = store

	synth, err := synthesis.NewManager(r.cfg.Synthesis, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup synthesis: %w", err)
	}

	var events scriptgen.Events
	if r.busClient != nil {
		events = r.busClient
	}
	scripts, err := scriptgen.NewService(r.cfg.ScriptGen, events, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup script generation: %w", err)
	}

	r.httpAPI = server.New(r.cfg, scripts, synth, store, r.logger)
	if err := r.httpAPI.Start(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	if metricsHandler != nil {
		r.startMetrics(metricsHandler)
	}

	r.logger.Info("daemon started",
		slog.String("http", fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.logger.Info("daemon stopping")
	r.shutdown()
	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded nats: %w", err)
	}
	r.embeddedNATS = embedded

	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	r.busClient = client
	return nil
}

func (r *Runtime) startMetrics(handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	r.metricsServer = &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("metrics server listening", slog.String("addr", r.cfg.Telemetry.PrometheusBind))
}

func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.httpAPI != nil {
		if err := r.httpAPI.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.busClient.Close()
	r.embeddedNATS.Shutdown()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("session store close error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.telemetryClose != nil {
		if err := r.telemetryClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}
