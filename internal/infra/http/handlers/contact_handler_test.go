package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xavierca1/dataverse-contacts/internal/infra/integration/dataverse"
	"github.com/xavierca1/dataverse-contacts/internal/usecase"
)

func strPtr(s string) *string { return &s }

func newHandler() (*ContactHandler, *MockContactGateway, *test.Hook) {
	logger, hook := test.NewNullLogger()
	gw := new(MockContactGateway)
	uc := usecase.NewContactUseCase(gw, nil, nil, logger)
	return NewContactHandler(uc, logger, "AuthType=ClientSecret;Url=https://contoso.crm.dynamics.com;ClientId=app;Secret=***"), gw, hook
}

func serve(h *ContactHandler, method, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/CreateContact", reader)
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func textBody(w *httptest.ResponseRecorder) string {
	return strings.TrimSpace(w.Body.String())
}

func TestPostCreatesContact(t *testing.T) {
	h, gw, _ := newHandler()
	newID := uuid.New()

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Create", mock.Anything, dataverse.ContactRecord{
		FirstName:     strPtr("Ada"),
		LastName:      strPtr("Lovelace"),
		EmailAddress1: strPtr("ada@example.com"),
	}).Return(newID, nil)

	w := serve(h, http.MethodPost, `{"FirstName":"Ada","LastName":"Lovelace","Email":"ada@example.com"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, fmt.Sprintf(`{"Message":"Contact created","Id":"%s"}`, newID), w.Body.String())
	gw.AssertExpectations(t)
}

func TestPostWithEmptyBodyCreatesNullContact(t *testing.T) {
	h, gw, _ := newHandler()
	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Create", mock.Anything, dataverse.ContactRecord{}).Return(uuid.New(), nil)

	w := serve(h, http.MethodPost, "")

	assert.Equal(t, http.StatusOK, w.Code)
	gw.AssertExpectations(t)
}

func TestPostMalformedJSON(t *testing.T) {
	h, gw, _ := newHandler()

	w := serve(h, http.MethodPost, `{"FirstName":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgInvalidJSON, textBody(w))
	gw.AssertNotCalled(t, "Ready", mock.Anything)
}

func TestGetListsContacts(t *testing.T) {
	h, gw, _ := newHandler()
	id := uuid.New()

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("RetrieveMultiple", mock.Anything, 10).Return([]dataverse.ContactRow{
		{ContactID: id, FirstName: strPtr("Ada"), LastName: strPtr("Lovelace"), EmailAddress1: nil},
	}, nil)

	// GET ignores the body, even a malformed one.
	w := serve(h, http.MethodGet, "{garbage")

	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Len(t, out[0], 4)
	assert.Equal(t, id.String(), out[0]["Id"])
	assert.Equal(t, "Ada", out[0]["FirstName"])
	assert.Equal(t, "Lovelace", out[0]["LastName"])
	assert.Contains(t, out[0], "Email")
	assert.Nil(t, out[0]["Email"])
}

func TestGetReturnsAtMostTen(t *testing.T) {
	h, gw, _ := newHandler()
	rows := make([]dataverse.ContactRow, 15)
	for i := range rows {
		rows[i].ContactID = uuid.New()
	}

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("RetrieveMultiple", mock.Anything, 10).Return(rows, nil)

	w := serve(h, http.MethodGet, "")

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out, 10)
}

func TestGetEmptyListIsArray(t *testing.T) {
	h, gw, _ := newHandler()
	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("RetrieveMultiple", mock.Anything, 10).Return([]dataverse.ContactRow{}, nil)

	w := serve(h, http.MethodGet, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPutUpdatesContact(t *testing.T) {
	h, gw, _ := newHandler()
	id := uuid.New()

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Update", mock.Anything, id, dataverse.ContactRecord{
		FirstName: strPtr("Augusta"), LastName: strPtr("King"), EmailAddress1: nil,
	}).Return(nil)

	w := serve(h, http.MethodPut, fmt.Sprintf(`{"Id":"%s","FirstName":"Augusta","LastName":"King"}`, id))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"Message":"Contact updated","Id":"%s"}`, id), w.Body.String())
}

func TestPutAndDeleteRejectInvalidIDs(t *testing.T) {
	bodies := []string{
		``,
		`{}`,
		`{"Id":null}`,
		`{"Id":""}`,
		`{"Id":"not-a-guid"}`,
		`{"Id":"1234"}`,
		`{"Id":123}`,
		`{"Id":true}`,
	}

	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		for _, body := range bodies {
			t.Run(method+" "+body, func(t *testing.T) {
				h, gw, _ := newHandler()

				w := serve(h, method, body)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Equal(t, MsgInvalidContactID, textBody(w))
				gw.AssertNotCalled(t, "Ready", mock.Anything)
			})
		}
	}
}

func TestDeleteRemovesContactOnce(t *testing.T) {
	h, gw, _ := newHandler()
	id := uuid.New()

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Delete", mock.Anything, id).Return(nil).Once()

	w := serve(h, http.MethodDelete, fmt.Sprintf(`{"Id":"%s"}`, id))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"Message":"Contact deleted","Id":"%s"}`, id), w.Body.String())
	gw.AssertNumberOfCalls(t, "Delete", 1)
}

func TestDeleteAlreadyDeletedIsNotFound(t *testing.T) {
	h, gw, _ := newHandler()
	id := uuid.New()

	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Delete", mock.Anything, id).Return(&dataverse.Error{StatusCode: http.StatusNotFound, Message: "Does Not Exist"})

	for i := 0; i < 2; i++ {
		w := serve(h, http.MethodDelete, fmt.Sprintf(`{"Id":"%s"}`, id))

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, usecase.CodeContactNotFound, resp.Error)
	}
}

func TestUnsupportedMethods(t *testing.T) {
	for _, method := range []string{http.MethodPatch, http.MethodHead, http.MethodOptions, "PROPFIND"} {
		for _, body := range []string{"", `{"Id":"x"}`, "not json"} {
			h, gw, _ := newHandler()

			w := serve(h, method, body)

			assert.Equal(t, http.StatusBadRequest, w.Code, method)
			if method != http.MethodHead {
				assert.Equal(t, MsgUnsupportedMethod, textBody(w), method)
			}
			gw.AssertNotCalled(t, "Ready", mock.Anything)
		}
	}
}

func TestNotReadyIsServiceUnavailable(t *testing.T) {
	h, gw, _ := newHandler()
	gw.On("Ready", mock.Anything).Return(errors.New("AADSTS7000215: invalid client secret"))

	w := serve(h, http.MethodGet, "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, usecase.CodeServiceUnavailable, resp.Error)
	gw.AssertNotCalled(t, "RetrieveMultiple", mock.Anything, mock.Anything)
}

func TestRemoteFailureIsBadGateway(t *testing.T) {
	h, gw, _ := newHandler()
	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("Create", mock.Anything, mock.Anything).Return(uuid.Nil, &dataverse.Error{StatusCode: 500, Message: "SQL timeout"})

	w := serve(h, http.MethodPost, `{"FirstName":"Ada"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, usecase.CodeRemoteError, resp.Error)
}

func TestHandlerNeverLogsSecret(t *testing.T) {
	h, gw, hook := newHandler()
	gw.On("Ready", mock.Anything).Return(nil)
	gw.On("RetrieveMultiple", mock.Anything, 10).Return([]dataverse.ContactRow{}, nil)

	serve(h, http.MethodGet, "")

	require.NotEmpty(t, hook.AllEntries())
	entry := hook.AllEntries()[0]
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "contact request received", entry.Message)
	assert.Equal(t, "AuthType=ClientSecret;Url=https://contoso.crm.dynamics.com;ClientId=app;Secret=***", entry.Data["connection"])
	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "s3cr3t")
	}
}
