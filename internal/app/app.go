package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/xavierca1/dataverse-contacts/internal/config"
	"github.com/xavierca1/dataverse-contacts/internal/infra/database"
	"github.com/xavierca1/dataverse-contacts/internal/infra/http/handlers"
	"github.com/xavierca1/dataverse-contacts/internal/infra/http/middleware"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/infra/mail"
	"github.com/xavierca1/dataverse-contacts/internal/infra/queue"
	"github.com/xavierca1/dataverse-contacts/internal/infra/worker"
	"github.com/xavierca1/dataverse-contacts/internal/usecase"
)

const Version = "1.0.0"

// ContactRoutes are the paths the contact handler answers on. Azure Functions
// forwards requests with the /api prefix.
var ContactRoutes = []string{"/CreateContact", "/api/CreateContact"}

// Application owns every long-lived dependency of the service.
type Application struct {
	config *config.Config
	logger *logrus.Logger

	client    *dataverse.Client
	db        *sql.DB
	rabbitMQ  *queue.RabbitMQ
	router    http.Handler
	retention *worker.AuditRetentionWorker
	welcome   *queue.Worker

	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New builds the shared Dataverse client and the optional audit and event
// infrastructure. Nothing is started until Start.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Application, error) {
	a := &Application{config: cfg, logger: logger}

	client, err := dataverse.NewClient(dataverse.Config{
		InstanceURI:  cfg.Dataverse.InstanceURI,
		ClientID:     cfg.Dataverse.AppID,
		ClientSecret: cfg.Dataverse.SecretValue,
		TenantID:     cfg.Dataverse.TenantID,
		Timeout:      cfg.Dataverse.Timeout,
	}, dataverse.WithLogger(logger.WithField("component", "dataverse")))
	if err != nil {
		return nil, fmt.Errorf("failed to create dataverse client: %w", err)
	}
	a.client = client

	var audit usecase.OperationRecorder
	if cfg.Audit.DatabaseURL != "" {
		db, err := database.NewDBConnection(cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to audit database: %w", err)
		}
		repo := database.NewContactOperationRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare audit schema: %w", err)
		}
		a.db = db
		a.retention = worker.NewAuditRetentionWorker(repo, cfg.Audit.Retention, logger.WithField("component", "audit_retention"))
		audit = repo
	}

	var events usecase.QueueProducerInterface
	if cfg.Queue.URL != "" {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.Queue.URL)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		a.rabbitMQ = rabbitMQ
		events = queue.NewProducer(rabbitMQ.Ch)

		if cfg.Mail.Host != "" {
			sender := mail.NewEmailSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
			a.welcome = queue.NewWorker(rabbitMQ.Ch, sender, logger.WithField("component", "welcome_worker"))
		}
	}

	contactUC := usecase.NewContactUseCase(client, events, audit, logger)
	contactHandler := handlers.NewContactHandler(contactUC, logger, cfg.Dataverse.String())

	var broker handlers.BrokerState
	if a.rabbitMQ != nil {
		broker = a.rabbitMQ.Conn
	}
	healthHandler := handlers.NewHealthHandler(client, a.db, broker, Version, logger.WithField("component", "health"))

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitPerMinute, time.Minute)
	}
	a.router = NewRouter(cfg.Server, logger, limiter, contactHandler, healthHandler)

	return a, nil
}

// NewRouter mounts the contact endpoint, health and metrics. limiter may be nil.
func NewRouter(cfg config.ServerConfig, logger logrus.FieldLogger, limiter *middleware.RateLimiter, contact *handlers.ContactHandler, health *handlers.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	// chi answers methods it does not know with 405; the contact endpoint
	// reports every unsupported method as a bad request.
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, handlers.MsgUnsupportedMethod, http.StatusBadRequest)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(corsOptions(cfg, false)))
		r.Get("/health", health.Handle)
		r.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(r chi.Router) {
		// Preflights fall through to the handler, which rejects OPTIONS.
		r.Use(cors.Handler(corsOptions(cfg, true)))
		if cfg.FunctionKey != "" {
			r.Use(middleware.FunctionKey(cfg.FunctionKey))
		}
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		for _, path := range ContactRoutes {
			r.HandleFunc(path, contact.Handle)
		}
	})

	return r
}

func corsOptions(cfg config.ServerConfig, passthrough bool) cors.Options {
	return cors.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:     []string{"Accept", "Content-Type", middleware.FunctionKeyHeader},
		MaxAge:             300,
		OptionsPassthrough: passthrough,
	}
}

// Handler is the fully wired router.
func (a *Application) Handler() http.Handler { return a.router }

// Client is the shared Dataverse client.
func (a *Application) Client() *dataverse.Client { return a.client }

// StartWorkers launches the background workers. They stop when Stop is called.
func (a *Application) StartWorkers(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.retention != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.retention.Start(ctx)
		}()
	}

	if a.welcome != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.welcome.Start(ctx, queue.WelcomeQueue); err != nil {
				a.logger.WithError(err).Error("welcome worker stopped")
			}
		}()
	}
}

// Start launches the workers and the HTTP server. It returns once the server
// is listening in the background; server failures are sent on the returned
// channel.
func (a *Application) Start(ctx context.Context) <-chan error {
	a.StartWorkers(ctx)

	a.httpServer = &http.Server{
		Addr:              ":" + a.config.Server.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.config.Server.Port).Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop drains the HTTP server, stops the workers and releases connections.
func (a *Application) Stop(ctx context.Context) error {
	var err error
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err = a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Error("failed to shutdown HTTP server")
		}
	}

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.closeResources()

	a.logger.Info("application stopped")
	return err
}

func (a *Application) closeResources() {
	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close rabbitmq")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close audit database")
		}
	}
}
