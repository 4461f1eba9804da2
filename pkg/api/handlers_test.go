package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/clients/backend"
	"github.com/vemana-jayanti/registration-portal/pkg/clients/nominatim"
	"github.com/vemana-jayanti/registration-portal/pkg/middleware"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/services"
	"github.com/vemana-jayanti/registration-portal/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	participants []models.Participant
	listErr      error
	submitted    []models.SubmissionPayload
	submitErr    error
	certificate  []byte
	downloadErr  error
	sent         []int64
	verify       *models.VerifyResponse
	verifyErr    error
}

func (b *stubBackend) ListParticipants(context.Context) ([]models.Participant, error) {
	return b.participants, b.listErr
}

func (b *stubBackend) Submit(_ context.Context, p models.SubmissionPayload) error {
	b.submitted = append(b.submitted, p)
	return b.submitErr
}

func (b *stubBackend) DownloadCertificate(context.Context, int64) ([]byte, error) {
	return b.certificate, b.downloadErr
}

func (b *stubBackend) SendCertificate(_ context.Context, id int64) error {
	b.sent = append(b.sent, id)
	return nil
}

func (b *stubBackend) Verify(context.Context, string) (*models.VerifyResponse, error) {
	return b.verify, b.verifyErr
}

type stubGeocoder struct{}

func (stubGeocoder) Reverse(context.Context, float64, float64) (*nominatim.Place, error) {
	return &nominatim.Place{City: "Kadiri", State: "Andhra Pradesh", Country: "India", CountryCode: "in", DisplayName: "Kadiri, Andhra Pradesh, India"}, nil
}

type testServer struct {
	router  *gin.Engine
	backend *stubBackend
	roster  *services.Roster
	cookie  *http.Cookie
}

func newTestServer(t *testing.T, be *stubBackend) *testServer {
	t.Helper()
	log := zap.NewNop()

	provider := services.NewLocationProvider(session.NewMemoryStore(100, time.Hour), stubGeocoder{}, time.Second, time.Hour, log)
	roster := services.NewRoster(be, services.RosterConfig{
		EventSlug:       "yogi_vemana_jayanti",
		EventFilePrefix: "YogiVemanaJayanti",
		Location:        time.UTC,
	}, log)
	t.Cleanup(func() {
		roster.Close()
		_ = provider.Close()
	})

	tmpl, err := LoadTemplates(time.UTC)
	require.NoError(t, err)

	h := NewHandlers(Deps{
		EventName:    "Yogi Vemana Jayanti Celebration",
		Location:     provider,
		Submissions:  services.NewSubmissionService(services.NewValidator(), be, log),
		Roster:       roster,
		Verification: services.NewVerificationService(be, services.VerificationConfig{Prefix: "YVJ", Year: 2026}, log),
		Renderer:     services.NewCertificateRenderer(services.CertificateConfig{EventName: "Yogi Vemana Jayanti Celebration", Prefix: "YVJ", Year: 2026}, log),
		Log:          log,
	})

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(middleware.Session(time.Hour, false))
	h.RegisterRoutes(r)

	return &testServer{router: r, backend: be, roster: roster}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			s.cookie = c
		}
	}
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleList() []models.Participant {
	city := "Kadiri"
	lat, lon := 14.11, 78.16
	return []models.Participant{
		{ID: 7, Name: "Ravi Kumar", Email: "ravi@example.com", Phone: "9876543210", Message: "Jai Vemana", City: &city, Latitude: &lat, Longitude: &lon, CreatedAt: time.Date(2026, 1, 18, 10, 0, 0, 0, time.UTC)},
		{ID: 8, Name: "Sita", Phone: "9123456780", CreatedAt: time.Date(2026, 1, 18, 11, 0, 0, 0, time.UTC)},
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestShowFormAsksForFix(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data-needs-fix="true"`)
	assert.Regexp(t, `timeout:\s*1000\s*,`, body)
	assert.Regexp(t, `enableHighAccuracy:\s*true\s*,`, body)
	assert.Regexp(t, `maximumAge:\s*0\s*\n`, body)
}

func TestRegisterRejectsMissingContact(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(postForm("/register", url.Values{"name": {"Ravi"}, "message": {"hello"}}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please provide either an email address or a phone number.")
	assert.Contains(t, w.Body.String(), `value="Ravi"`, "entered values are kept")
	assert.Empty(t, s.backend.submitted)
}

func TestRegisterSanitizesPhone(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(postForm("/register", url.Values{"name": {"Ravi"}, "phone": {"(987) 654-3210 99"}}))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, s.backend.submitted, 1)
	assert.Equal(t, "9876543210", s.backend.submitted[0].Phone)
	assert.Nil(t, s.backend.submitted[0].Location)
	assert.Contains(t, w.Body.String(), "Your registration has been received!")
}

func TestRegisterJSONIncludesSessionLocation(t *testing.T) {
	s := newTestServer(t, &stubBackend{})

	w := s.do(postJSON("/api/location", `{"latitude":14.11,"longitude":78.16,"accuracy":20}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(postJSON("/register", `{"name":"Ravi","email":"ravi@example.com"}`))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"`+services.MsgSubmitSucceeded+`"}`, w.Body.String())

	require.Len(t, s.backend.submitted, 1)
	loc := s.backend.submitted[0].Location
	require.NotNil(t, loc)
	assert.Equal(t, 14.11, loc.Latitude)
	assert.Equal(t, "Kadiri", *loc.City)
}

func TestRegisterBackendFailure(t *testing.T) {
	s := newTestServer(t, &stubBackend{submitErr: &backend.APIError{StatusCode: 409, Message: "Already registered"}})
	w := s.do(postJSON("/register", `{"name":"Ravi","email":"ravi@example.com"}`))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Already registered"}`, w.Body.String())

	s.backend.submitErr = errors.New("connection refused")
	w = s.do(postJSON("/register", `{"name":"Ravi","email":"ravi@example.com"}`))
	assert.JSONEq(t, `{"error":"`+services.MsgSubmitFailed+`"}`, w.Body.String())
}

func TestLocationLifecycle(t *testing.T) {
	s := newTestServer(t, &stubBackend{})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/location", nil))
	assert.JSONEq(t, `{"location":null,"loading":true}`, w.Body.String())

	w = s.do(postJSON("/api/location", `{"errorCode":1,"message":"User denied Geolocation"}`))
	assert.JSONEq(t, `{"location":null,"error":"User denied Geolocation","loading":false}`, w.Body.String())

	w = s.do(postJSON("/api/location/refresh", `{"latitude":14.11,"longitude":78.16,"accuracy":20}`))
	var state services.LocationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.NotNil(t, state.Reading)
	assert.Equal(t, "Kadiri", *state.Reading.City)

	w = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), `data-needs-fix="false"`)
	assert.Contains(t, w.Body.String(), "Kadiri, Andhra Pradesh, India")

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/location", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/location", nil))
	assert.JSONEq(t, `{"location":null,"loading":false}`, w.Body.String())
}

func TestReportLocationRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(postJSON("/api/location", `{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowData(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList()})
	w := s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Total Registered Participants: <strong>2</strong>")
	assert.Contains(t, body, "Ravi Kumar")
	assert.Contains(t, body, `href="/data/7/location"`)
	assert.Contains(t, body, "No location")
	assert.Contains(t, body, "18/01/2026, 10:00:00")
}

func TestShowDataEmptyAndFailed(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	w := s.do(httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Contains(t, w.Body.String(), "No participants registered yet")

	s2 := newTestServer(t, &stubBackend{listErr: errors.New("down")})
	w = s2.do(httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Contains(t, w.Body.String(), services.MsgFetchFailed)
}

func TestExportData(t *testing.T) {
	s := newTestServer(t, &stubBackend{})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/data/export", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/data?notice=nothing-to-export", w.Header().Get("Location"))

	s.backend.participants = sampleList()
	s.do(httptest.NewRequest(http.MethodPost, "/data/refresh", nil))

	w = s.do(httptest.NewRequest(http.MethodGet, "/data/export", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "yogi_vemana_jayanti_participants_")
	assert.NotZero(t, w.Body.Len())
}

func TestDownloadCertificate(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList(), certificate: []byte("%PDF-1.7")})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/data/7/certificate", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="YogiVemanaJayanti_Certificate_Ravi_Kumar.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7", w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/data/abc/certificate", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadCertificateFailureShowsOnRow(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList(), downloadErr: &backend.APIError{StatusCode: 404, Message: "Certificate not generated"}})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/data/7/certificate", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Contains(t, w.Body.String(), "Certificate not generated")
}

func TestSendCertificate(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList()})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodPost, "/data/8/send", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/data?notice=no-email", w.Header().Get("Location"))
	assert.Empty(t, s.backend.sent)

	req := httptest.NewRequest(http.MethodPost, "/data/7/send", nil)
	req.Header.Set("Accept", "application/json")
	w = s.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, s.backend.sent)
	assert.Contains(t, w.Body.String(), "Certificate sent to ravi@example.com!")
}

func TestShowMessageAndLocation(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList()})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/data/7/message", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Jai Vemana")

	w = s.do(httptest.NewRequest(http.MethodGet, "/data/7/location", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "14.110000, 78.160000")
	assert.Contains(t, w.Body.String(), "https://www.google.com/maps?q=14.110000%2C78.160000")

	w = s.do(httptest.NewRequest(http.MethodGet, "/data/99/message", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderCertificate(t *testing.T) {
	s := newTestServer(t, &stubBackend{participants: sampleList()})
	s.do(httptest.NewRequest(http.MethodGet, "/data", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/data/7/render", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Ravi_Kumar_Certificate.png"`, w.Header().Get("Content-Disposition"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/data/7/render?format=svg", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPage(t *testing.T) {
	s := newTestServer(t, &stubBackend{verify: &models.VerifyResponse{
		Valid: true,
		Participant: &models.CertifiedParticipant{
			ID:        7,
			Name:      "Ravi Kumar",
			Email:     "ravi@example.com",
			IssueDate: time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		},
	}})

	w := s.do(httptest.NewRequest(http.MethodGet, "/verify/7", nil))
	body := w.Body.String()
	assert.Contains(t, body, "Valid certificate")
	assert.Contains(t, body, "19 January 2026")
	assert.Contains(t, body, "YVJ-7-2026")
	assert.NotContains(t, body, "Phone:")

	s.backend.verify = &models.VerifyResponse{Valid: false}
	w = s.do(httptest.NewRequest(http.MethodGet, "/verify/404", nil))
	body = w.Body.String()
	assert.Contains(t, body, "Invalid certificate")
	assert.Contains(t, body, services.MsgCertificateNotFound)
	assert.Contains(t, body, "Certificate ID: YVJ-404-2026")
}
