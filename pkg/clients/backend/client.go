package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/models"
)

// Client defines the interface for interacting with the registration backend
type Client interface {
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	Submit(ctx context.Context, payload models.SubmissionPayload) error
	DownloadCertificate(ctx context.Context, id int64) ([]byte, error)
	SendCertificate(ctx context.Context, id int64) error
	Verify(ctx context.Context, certificateID string) (*models.VerifyResponse, error)
}

// APIError is a non-2xx answer from the backend. Message holds the backend's
// own {"error": "..."} text when it sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Message extracts the backend-provided message from err, if any.
func Message(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

type clientImpl struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new backend client rooted at baseURL
func NewClient(baseURL string, httpClient *http.Client, log *zap.Logger) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log.With(zap.String("client", "backend")),
	}
}

func (c *clientImpl) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/data", nil)
	if err != nil {
		return nil, err
	}

	var participants []models.Participant
	if err := json.Unmarshal(body, &participants); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	c.log.Debug("fetched participants", zap.Int("count", len(participants)))
	return participants, nil
}

func (c *clientImpl) Submit(ctx context.Context, payload models.SubmissionPayload) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error creating payload: %w", err)
	}

	if _, err := c.do(ctx, http.MethodPost, "/api/submit", jsonPayload); err != nil {
		return err
	}
	return nil
}

func (c *clientImpl) DownloadCertificate(ctx context.Context, id int64) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/api/download-certificate/"+strconv.FormatInt(id, 10), nil)
}

func (c *clientImpl) SendCertificate(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodPost, "/api/send-certificate/"+strconv.FormatInt(id, 10), nil)
	return err
}

func (c *clientImpl) Verify(ctx context.Context, certificateID string) (*models.VerifyResponse, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/verify/"+url.PathEscape(certificateID), nil)
	if err != nil {
		return nil, err
	}

	var response models.VerifyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	return &response, nil
}

func (c *clientImpl) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errBody) == nil {
			apiErr.Message = errBody.Error
		}
		c.log.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Message),
		)
		return nil, apiErr
	}

	return body, nil
}
