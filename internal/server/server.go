// FilePath: server/worker/internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/api"
	"github.com/vigilhome/vigil_v3/server/worker/api/resources"
	"github.com/vigilhome/vigil_v3/server/worker/internal/alerting"
	"github.com/vigilhome/vigil_v3/server/worker/internal/bus"
	"github.com/vigilhome/vigil_v3/server/worker/internal/classifier"
	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
	"github.com/vigilhome/vigil_v3/server/worker/internal/maintenance"
	"github.com/vigilhome/vigil_v3/server/worker/internal/monitoring"
	"github.com/vigilhome/vigil_v3/server/worker/internal/notify"
	"github.com/vigilhome/vigil_v3/server/worker/internal/queue"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository/mongodb"
	"github.com/vigilhome/vigil_v3/server/worker/internal/repository/postgres"
	"github.com/vigilhome/vigil_v3/server/worker/internal/storage"
	"github.com/vigilhome/vigil_v3/server/worker/internal/worker"
)

// Server owns the worker runtime: the job loop, the janitor, and the ops
// HTTP surface, plus every backing connection they share.
type Server struct {
	config     *config.Config
	srv        *http.Server
	monitoring *monitoring.Service

	appDB    database.DB
	mongoDB  *database.MongoDB
	alertBus *bus.AlertBus
	host     *classifier.Host
	worker   *worker.Worker
	janitor  *maintenance.Janitor
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start wires all components, launches the job loop, the janitor and the
// ops HTTP server, then blocks until an interrupt triggers shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.monitoring = monitoring.NewService(monitoring.Config{
		PrometheusEndpoint: s.config.Monitoring.PrometheusEndpoint,
		LokiEndpoint:       s.config.Monitoring.LokiEndpoint,
	})

	if err := s.initialize(ctx); err != nil {
		return err
	}

	go s.worker.Run(ctx)
	go s.janitor.Run(ctx)

	go func() {
		nuts.L.Infof("[Server] Ops API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown(cancel)
}

// initialize connects every backing service and assembles the pipeline.
func (s *Server) initialize(ctx context.Context) error {
	var err error

	s.appDB, err = database.NewPostgresDB(s.config.Database.AppDB)
	if err != nil {
		return fmt.Errorf("failed to connect to app database: %w", err)
	}

	s.mongoDB, err = database.NewMongoDB(s.config.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to event store: %w", err)
	}

	events, err := mongodb.NewEventRepository(s.mongoDB)
	if err != nil {
		return fmt.Errorf("failed to initialize event repository: %w", err)
	}
	alerts := postgres.NewAlertRepository(s.appDB)
	devices := postgres.NewDeviceRepository(s.appDB)
	configs := postgres.NewModelConfigRepository(s.appDB)
	contacts := postgres.NewContactRepository(s.appDB)

	q, err := queue.New(ctx, s.config.AWS, s.config.Worker)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}
	store, err := storage.New(ctx, s.config.AWS)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	s.alertBus, err = bus.NewAlertBus(s.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	notifier, err := notify.NewEmailNotifier(s.config.SMTP, contacts)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	s.host = classifier.NewHost(s.config.Classifier.SampleRate, s.config.Classifier.PredictTimeout)

	gate := alerting.NewGate(configs)
	var publisher alerting.Publisher
	if s.alertBus != nil {
		publisher = s.alertBus
	}
	writer := alerting.NewWriter(alerts, notifier, publisher)

	s.worker = worker.New(q, store, events, devices, s.host, gate, writer, s.monitoring, s.config.Worker)
	s.janitor = maintenance.NewJanitor(events, s.monitoring, s.config.Worker)
	s.janitor.OnReaped(func(count int64) {
		s.monitoring.RecordEvent("events_reaped", map[string]string{
			"count": fmt.Sprintf("%d", count),
		})
	})

	s.setupHTTP(events)
	return nil
}

func (s *Server) setupHTTP(events *mongodb.EventRepo) {
	checks := map[string]resources.HealthCheckFunc{
		"postgres": func(ctx context.Context) error { return s.appDB.GetDB().PingContext(ctx) },
		"mongodb":  func(ctx context.Context) error { return s.mongoDB.Ping(ctx) },
	}

	ops := resources.NewOpsHandlers(s.monitoring, s.worker.Stats, checks, nuts.GetVersion())
	analytics := resources.NewAnalyticsHandlers(events)
	router := api.NewRouter(resources.NewResources(analytics, ops))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(router)),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
}

// waitForShutdown waits for interrupt signal and gracefully shuts everything down
func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down...")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancelTimeout()

	if err := s.srv.Shutdown(ctx); err != nil {
		nuts.L.Errorf("[Server] Error shutting down ops API: %v", err)
	}

	s.host.Close()
	if err := s.alertBus.Close(); err != nil {
		nuts.L.Errorf("[Server] Error closing redis: %v", err)
	}
	if err := s.mongoDB.Close(ctx); err != nil {
		nuts.L.Errorf("[Server] Error closing event store: %v", err)
	}
	if err := s.appDB.Close(); err != nil {
		nuts.L.Errorf("[Server] Error closing app database: %v", err)
	}

	nuts.L.Infof("[Server] Shut down successfully")
	return nil
}
