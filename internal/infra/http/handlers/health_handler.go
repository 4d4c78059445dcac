package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var errBrokerClosed = errors.New("connection closed")

// DataverseChecker performs an authenticated round trip to the CRM.
type DataverseChecker interface {
	Ping(ctx context.Context) error
}

// BrokerState reports whether the AMQP connection is gone.
type BrokerState interface {
	IsClosed() bool
}

type HealthHandler struct {
	Dataverse DataverseChecker
	DB        *sql.DB
	RabbitMQ  BrokerState
	StartTime time.Time
	Version   string
	Logger    logrus.FieldLogger
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

func NewHealthHandler(dv DataverseChecker, db *sql.DB, rabbitMQ BrokerState, version string, logger logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{
		Dataverse: dv,
		DB:        db,
		RabbitMQ:  rabbitMQ,
		StartTime: time.Now(),
		Version:   version,
		Logger:    logger,
	}
}

// The route is unauthenticated: causes go to the log, not the response.
func (h *HealthHandler) unhealthy(dep string, err error) string {
	h.Logger.WithError(err).WithField("dependency", dep).Warn("health check failed")
	return "unhealthy"
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := make(map[string]string)

	if h.Dataverse != nil {
		if err := h.Dataverse.Ping(ctx); err != nil {
			deps["dataverse"] = h.unhealthy("dataverse", err)
		} else {
			deps["dataverse"] = "healthy"
		}
	} else {
		deps["dataverse"] = "not configured"
	}

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			deps["database"] = h.unhealthy("database", err)
		} else {
			deps["database"] = "healthy"
		}
	} else {
		deps["database"] = "not configured"
	}

	if h.RabbitMQ != nil {
		if h.RabbitMQ.IsClosed() {
			deps["rabbitmq"] = h.unhealthy("rabbitmq", errBrokerClosed)
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	status := "healthy"
	for _, v := range deps {
		if v != "healthy" && v != "not configured" {
			status = "degraded"
			break
		}
	}

	response := HealthResponse{
		Status:       status,
		Version:      h.Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}
