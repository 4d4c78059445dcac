package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xavierca1/dataverse-contacts/internal/entity"
	"github.com/xavierca1/dataverse-contacts/internal/infra/http/middleware"
	"github.com/xavierca1/dataverse-contacts/internal/usecase"
)

const (
	MsgUnsupportedMethod = "Unsupported HTTP method"
	MsgInvalidContactID  = "Invalid or missing contact ID"
	MsgInvalidJSON       = "Invalid JSON body"

	maxBodyBytes = 1 << 20
)

// ContactHandler serves the single contact endpoint and dispatches on the
// HTTP method.
type ContactHandler struct {
	ContactUC *usecase.ContactUseCase
	Logger    logrus.FieldLogger

	// Connection is a printable description of the CRM connection. It must
	// not contain the client secret.
	Connection string
}

func NewContactHandler(uc *usecase.ContactUseCase, logger logrus.FieldLogger, connection string) *ContactHandler {
	return &ContactHandler{
		ContactUC:  uc,
		Logger:     logger,
		Connection: connection,
	}
}

func (h *ContactHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	method := strings.ToUpper(r.Method)

	log := h.Logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       r.URL.Path,
		"request_id": chimw.GetReqID(ctx),
	})
	log.WithField("connection", h.Connection).Info("contact request received")

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		http.Error(w, MsgUnsupportedMethod, http.StatusBadRequest)
		return
	}

	var payload entity.ContactPayload
	if method != http.MethodGet {
		if err := decodePayload(w, r, &payload); err != nil {
			log.WithError(err).Warn("rejecting malformed body")
			http.Error(w, MsgInvalidJSON, http.StatusBadRequest)
			return
		}
	}

	var id uuid.UUID
	if method == http.MethodPut || method == http.MethodDelete {
		var err error
		if id, err = payload.ContactID(); err != nil {
			http.Error(w, MsgInvalidContactID, http.StatusBadRequest)
			return
		}
	}

	if err := h.ContactUC.Ready(ctx); err != nil {
		h.writeUseCaseError(w, log, "ready", err)
		return
	}

	input := usecase.ContactInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
	}

	switch method {
	case http.MethodPost:
		out, err := h.ContactUC.Create(ctx, input)
		if err != nil {
			h.writeUseCaseError(w, log, "create", err)
			return
		}
		middleware.RecordContactOperation("create", "success")
		writeJSON(w, http.StatusOK, out)

	case http.MethodGet:
		out, err := h.ContactUC.List(ctx)
		if err != nil {
			h.writeUseCaseError(w, log, "list", err)
			return
		}
		middleware.RecordContactOperation("list", "success")
		writeJSON(w, http.StatusOK, out)

	case http.MethodPut:
		out, err := h.ContactUC.Update(ctx, id, input)
		if err != nil {
			h.writeUseCaseError(w, log, "update", err)
			return
		}
		middleware.RecordContactOperation("update", "success")
		writeJSON(w, http.StatusOK, out)

	case http.MethodDelete:
		out, err := h.ContactUC.Delete(ctx, id)
		if err != nil {
			h.writeUseCaseError(w, log, "delete", err)
			return
		}
		middleware.RecordContactOperation("delete", "success")
		writeJSON(w, http.StatusOK, out)
	}
}

// decodePayload treats an empty body and a JSON null as an empty payload.
func decodePayload(w http.ResponseWriter, r *http.Request, dst *entity.ContactPayload) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (h *ContactHandler) writeUseCaseError(w http.ResponseWriter, log logrus.FieldLogger, op string, err error) {
	var de *usecase.DomainError
	var te *usecase.TechnicalError

	switch {
	case errors.As(err, &de):
		status := http.StatusBadRequest
		if de.Code == usecase.CodeContactNotFound {
			status = http.StatusNotFound
		}
		middleware.RecordContactOperation(op, strings.ToLower(de.Code))
		log.WithError(err).Info("contact operation rejected")
		writeErrorResponse(w, status, de.Code, de.Message)

	case errors.As(err, &te) && te.Code == usecase.CodeServiceUnavailable:
		middleware.RecordIntegrationError("dataverse")
		log.WithError(err).Error("CRM service unavailable")
		writeErrorResponse(w, http.StatusServiceUnavailable, te.Code, "CRM service is not available")

	case errors.As(err, &te):
		middleware.RecordContactOperation(op, "remote_error")
		middleware.RecordIntegrationError("dataverse")
		log.WithError(err).Error("contact operation failed")
		writeErrorResponse(w, http.StatusBadGateway, te.Code, te.Message)

	default:
		log.WithError(err).Error("unexpected error")
		writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}
