package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/middleware"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/services"
)

// Notices shown on the participant page after a redirect.
var notices = map[string]string{
	"nothing-to-export": "No participant data to export",
	"no-email":          "This participant has no email address on record.",
	"unknown":           "Participant not found. Refresh the list and try again.",
}

// Handlers contains all HTTP handlers for the portal
type Handlers struct {
	eventName   string
	location    *services.LocationProvider
	submissions services.SubmissionService
	roster      *services.Roster
	verifier    services.VerificationService
	renderer    *services.CertificateRenderer
	log         *zap.Logger
}

// Deps are the services the handlers delegate to.
type Deps struct {
	EventName    string
	Location     *services.LocationProvider
	Submissions  services.SubmissionService
	Roster       *services.Roster
	Verification services.VerificationService
	Renderer     *services.CertificateRenderer
	Log          *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		eventName:   d.EventName,
		location:    d.Location,
		submissions: d.Submissions,
		roster:      d.Roster,
		verifier:    d.Verification,
		renderer:    d.Renderer,
		log:         d.Log.With(zap.String("component", "api")),
	}
}

// RegisterRoutes mounts every page and API route on r.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	r.GET("/", h.ShowForm)
	r.POST("/register", h.Register)

	loc := r.Group("/api/location")
	loc.GET("", h.GetLocation)
	loc.POST("", h.ReportLocation)
	loc.POST("/refresh", h.RefreshLocation)
	loc.DELETE("", h.ClearLocation)

	data := r.Group("/data")
	data.GET("", h.ShowData)
	data.POST("/refresh", h.RefreshData)
	data.GET("/export", h.ExportData)
	data.GET("/:id/certificate", h.DownloadCertificate)
	data.POST("/:id/send", h.SendCertificate)
	data.GET("/:id/message", h.ShowMessage)
	data.GET("/:id/location", h.ShowLocation)
	data.GET("/:id/render", h.RenderCertificate)

	r.GET("/verify/:id", h.Verify)
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Page carries what the shared layout needs.
type Page struct {
	Title     string
	EventName string
}

func (h *Handlers) page(title string) Page {
	return Page{Title: title, EventName: h.eventName}
}

type formPage struct {
	Page
	Form             models.RegistrationForm
	Success          string
	Error            string
	Location         services.LocationState
	NeedsFix         bool
	Options          services.PositionOptions
	TimeoutMillis    int64
	MaximumAgeMillis int64
	PhoneLength      int
}

func (h *Handlers) renderForm(c *gin.Context, status int, form models.RegistrationForm, success, failure string) {
	state := h.location.State(c.Request.Context(), middleware.SessionID(c))
	opts := h.location.Options()
	c.HTML(status, "form.html", formPage{
		Page:             h.page("Register"),
		Form:             form,
		Success:          success,
		Error:            failure,
		Location:         state,
		NeedsFix:         state.Reading == nil,
		Options:          opts,
		TimeoutMillis:    opts.Timeout.Milliseconds(),
		MaximumAgeMillis: opts.MaximumAge.Milliseconds(),
		PhoneLength:      services.PhoneLength,
	})
}

// ShowForm renders the registration form
func (h *Handlers) ShowForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, models.RegistrationForm{}, "", "")
}

// Register validates and submits a registration. It accepts a form post or
// a JSON body and answers in kind.
func (h *Handlers) Register(c *gin.Context) {
	var form models.RegistrationForm
	if err := c.ShouldBind(&form); err != nil {
		h.log.Warn("error binding registration", zap.Error(err))
		h.registerFailed(c, http.StatusBadRequest, form, "Invalid request")
		return
	}
	form.Phone = services.SanitizePhone(form.Phone)

	reading := h.location.Reading(c.Request.Context(), middleware.SessionID(c))
	err := h.submissions.Submit(c.Request.Context(), form, reading)

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		h.registerFailed(c, http.StatusBadRequest, form, verr.Message)
	case err != nil:
		h.registerFailed(c, http.StatusBadGateway, form, services.UserMessage(err, services.MsgSubmitFailed))
	case wantsJSON(c):
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": services.MsgSubmitSucceeded})
	default:
		h.renderForm(c, http.StatusOK, models.RegistrationForm{}, services.MsgSubmitSucceeded, "")
	}
}

func (h *Handlers) registerFailed(c *gin.Context, status int, form models.RegistrationForm, msg string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	h.renderForm(c, status, form, "", msg)
}

// GetLocation reports the session's location state
func (h *Handlers) GetLocation(c *gin.Context) {
	c.JSON(http.StatusOK, h.location.State(c.Request.Context(), middleware.SessionID(c)))
}

// ReportLocation receives the page's geolocation outcome. A cached reading
// wins over whatever was reported.
func (h *Handlers) ReportLocation(c *gin.Context) {
	var reported services.ReportedPosition
	if err := c.ShouldBindJSON(&reported); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}
	c.JSON(http.StatusOK, h.location.Activate(c.Request.Context(), middleware.SessionID(c), reported))
}

// RefreshLocation replaces the cached reading with the reported one
func (h *Handlers) RefreshLocation(c *gin.Context) {
	var reported services.ReportedPosition
	if err := c.ShouldBindJSON(&reported); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}
	c.JSON(http.StatusOK, h.location.Refresh(c.Request.Context(), middleware.SessionID(c), reported))
}

// ClearLocation forgets the session's reading
func (h *Handlers) ClearLocation(c *gin.Context) {
	if err := h.location.Clear(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.log.Error("error clearing location", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear location"})
		return
	}
	c.Status(http.StatusNoContent)
}

type dataPage struct {
	Page
	Snapshot services.RosterSnapshot
	Rows     []services.Row
	Loading  bool
	Failed   bool
	Notice   string
}

// ShowData fetches the participant list and renders it
func (h *Handlers) ShowData(c *gin.Context) {
	// A failed fetch is rendered from the snapshot.
	_ = h.roster.Fetch(c.Request.Context())
	h.renderData(c)
}

func (h *Handlers) renderData(c *gin.Context) {
	snap := h.roster.Snapshot()
	c.HTML(http.StatusOK, "data.html", dataPage{
		Page:     h.page("Participants"),
		Snapshot: snap,
		Rows:     snap.Rows(h.roster.Tracker()),
		Loading:  snap.State == services.ListLoading,
		Failed:   snap.State == services.ListFailed,
		Notice:   notices[c.Query("notice")],
	})
}

// RefreshData refetches the list and returns to the participant page
func (h *Handlers) RefreshData(c *gin.Context) {
	_ = h.roster.Fetch(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/data")
}

// ExportData downloads the current list as a spreadsheet
func (h *Handlers) ExportData(c *gin.Context) {
	name, data, err := h.roster.Export()
	if errors.Is(err, services.ErrNothingToExport) {
		c.Redirect(http.StatusSeeOther, "/data?notice=nothing-to-export")
		return
	}
	if err != nil {
		h.log.Error("error exporting participants", zap.Error(err))
		c.String(http.StatusInternalServerError, "Failed to export participant data")
		return
	}
	attachment(c, name, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// DownloadCertificate streams the backend-issued certificate
func (h *Handlers) DownloadCertificate(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	name, data, err := h.roster.DownloadCertificate(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrUnknownParticipant):
		c.Redirect(http.StatusSeeOther, "/data?notice=unknown")
	case err != nil:
		c.Redirect(http.StatusSeeOther, "/data#row-"+strconv.FormatInt(id, 10))
	default:
		attachment(c, name, "application/pdf", data)
	}
}

// SendCertificate asks the backend to email a certificate
func (h *Handlers) SendCertificate(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	err := h.roster.SendCertificate(c.Request.Context(), id)

	if wantsJSON(c) {
		switch {
		case errors.Is(err, services.ErrNoEmail):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": notices["no-email"]})
		case errors.Is(err, services.ErrUnknownParticipant):
			c.JSON(http.StatusNotFound, gin.H{"error": notices["unknown"]})
		default:
			c.JSON(http.StatusOK, h.roster.Tracker().Status(services.ActionSend, id))
		}
		return
	}

	switch {
	case errors.Is(err, services.ErrNoEmail):
		c.Redirect(http.StatusSeeOther, "/data?notice=no-email")
	case errors.Is(err, services.ErrUnknownParticipant):
		c.Redirect(http.StatusSeeOther, "/data?notice=unknown")
	default:
		c.Redirect(http.StatusSeeOther, "/data#row-"+strconv.FormatInt(id, 10))
	}
}

type participantPage struct {
	Page
	Participant models.Participant
}

// ShowMessage shows a participant's message from the last fetched list
func (h *Handlers) ShowMessage(c *gin.Context) {
	if p, ok := h.lookup(c); ok {
		c.HTML(http.StatusOK, "message.html", participantPage{Page: h.page("Message"), Participant: p})
	}
}

// ShowLocation shows a participant's recorded location
func (h *Handlers) ShowLocation(c *gin.Context) {
	if p, ok := h.lookup(c); ok {
		c.HTML(http.StatusOK, "location.html", participantPage{Page: h.page("Location Details"), Participant: p})
	}
}

// RenderCertificate renders a certificate locally as PNG or PDF
func (h *Handlers) RenderCertificate(c *gin.Context) {
	p, ok := h.lookup(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", services.FormatPNG)
	var buf bytes.Buffer
	name, err := h.renderer.Render(&buf, p, format)
	if errors.Is(err, services.ErrUnknownFormat) {
		c.String(http.StatusBadRequest, "Unsupported format %q", format)
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate certificate")
		return
	}

	contentType := "image/png"
	if format == services.FormatPDF {
		contentType = "application/pdf"
	}
	attachment(c, name, contentType, buf.Bytes())
}

type verifyPage struct {
	Page
	Result services.Verification
}

// Verify looks a certificate up once and renders the outcome
func (h *Handlers) Verify(c *gin.Context) {
	result := h.verifier.Verify(c.Request.Context(), c.Param("id"))
	c.HTML(http.StatusOK, "verify.html", verifyPage{Page: h.page("Verify Certificate"), Result: result})
}

func (h *Handlers) lookup(c *gin.Context) (models.Participant, bool) {
	id, ok := participantID(c)
	if !ok {
		return models.Participant{}, false
	}
	p, ok := h.roster.Lookup(id)
	if !ok {
		c.String(http.StatusNotFound, "%s", notices["unknown"])
		return models.Participant{}, false
	}
	return p, true
}

func participantID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid participant id")
		return 0, false
	}
	return id, true
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON || c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
