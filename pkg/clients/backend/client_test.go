package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client(), zap.NewNop())
}

func TestListParticipants(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/data", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id": 7, "name": "Ravi", "email": "ravi@example.com", "created_at": "2026-01-18T10:00:00Z",
			 "certificate_sent": true, "certificate_sent_at": "2026-01-19T08:30:00Z",
			 "city": "Kadiri", "latitude": 14.11, "longitude": 78.16},
			{"id": 8, "name": "Sita", "phone": "9876543210", "created_at": "2026-01-18T11:00:00Z"}
		]`)
	})

	list, err := c.ListParticipants(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, int64(7), list[0].ID)
	assert.True(t, list[0].CertificateSent)
	require.NotNil(t, list[0].CertificateSentAt)
	require.NotNil(t, list[0].City)
	assert.Equal(t, "Kadiri", *list[0].City)
	assert.True(t, list[0].HasLocation())

	assert.Nil(t, list[1].City)
	assert.Nil(t, list[1].Latitude)
	assert.False(t, list[1].HasEmail())
	assert.False(t, list[1].HasLocation())
}

func TestSubmitSendsPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/submit", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	err := c.Submit(context.Background(), models.SubmissionPayload{Name: "Ravi", Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", got["name"])
	assert.Equal(t, "9876543210", got["phone"])
	_, hasLocation := got["location"]
	assert.False(t, hasLocation)
}

func TestBackendErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"Email already registered"}`)
	})

	err := c.Submit(context.Background(), models.SubmissionPayload{Name: "Ravi"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	msg, ok := Message(err)
	assert.True(t, ok)
	assert.Equal(t, "Email already registered", msg)
}

func TestBackendErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.SendCertificate(context.Background(), 3)
	require.Error(t, err)
	_, ok := Message(err)
	assert.False(t, ok)
}

func TestDownloadCertificate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download-certificate/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.7 fake")
	})

	data, err := c.DownloadCertificate(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(data))
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/verify/YVJ-7-2026":
			_, _ = io.WriteString(w, `{"valid":true,"participant":{"id":7,"name":"Ravi","issueDate":"2026-01-19T08:30:00Z"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"valid":false,"error":"Certificate not found"}`)
		}
	})

	resp, err := c.Verify(context.Background(), "YVJ-7-2026")
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	require.NotNil(t, resp.Participant)
	assert.Equal(t, "Ravi", resp.Participant.Name)

	_, err = c.Verify(context.Background(), "YVJ-99-2026")
	msg, ok := Message(err)
	assert.True(t, ok)
	assert.Equal(t, "Certificate not found", msg)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, zap.NewNop())
	_, err := c.ListParticipants(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
