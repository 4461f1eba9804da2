package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/clients/backend"
	"github.com/vemana-jayanti/registration-portal/pkg/metrics"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/utils"
)

var (
	ErrNoEmail            = errors.New("this participant has no email address on record")
	ErrUnknownParticipant = errors.New("participant not found")
)

const (
	MsgFetchFailed        = "Failed to fetch participant data"
	MsgDownloadSucceeded  = "Certificate downloaded!"
	MsgDownloadFailed     = "Failed to download certificate"
	MsgSendFailed         = "Failed to send certificate"
	msgSendSucceededFmt   = "Certificate sent to %s!"
	certificateFileSuffix = ".pdf"
)

// ListState is the state of the participant list as a whole.
type ListState int

const (
	ListLoading ListState = iota
	ListReady
	ListFailed
)

// RosterSnapshot is a consistent read of the roster for rendering.
// Error may be set alongside ListReady when a refresh failed but an earlier
// list is still shown.
type RosterSnapshot struct {
	State        ListState
	Participants []models.Participant
	Error        string
	FetchedAt    time.Time
}

// Row pairs a participant with the statuses of its certificate actions.
type Row struct {
	models.Participant
	Download RowStatus
	Send     RowStatus
}

// Rows joins the snapshot's participants with tracker statuses.
func (s RosterSnapshot) Rows(tracker *RowTracker) []Row {
	rows := make([]Row, len(s.Participants))
	for i, p := range s.Participants {
		rows[i] = Row{
			Participant: p,
			Download:    tracker.Status(ActionDownload, p.ID),
			Send:        tracker.Status(ActionSend, p.ID),
		}
	}
	return rows
}

// Roster is the participant list view: the last fetched list, its load
// state, and the per-row certificate action statuses.
type Roster struct {
	backend    backend.Client
	tracker    *RowTracker
	filePrefix string
	slug       string
	loc        *time.Location
	now        func() time.Time
	log        *zap.Logger

	mu        sync.RWMutex
	state     ListState
	list      []models.Participant
	err       string
	fetchedAt time.Time
	// started numbers fetches in start order; applied is the newest
	// fetch whose outcome is shown.
	started uint64
	applied uint64
}

// RosterConfig names the event in generated file names.
type RosterConfig struct {
	EventSlug       string
	EventFilePrefix string
	Location        *time.Location
}

// NewRoster creates a roster in the loading state.
func NewRoster(backendClient backend.Client, cfg RosterConfig, log *zap.Logger) *Roster {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Roster{
		backend:    backendClient,
		tracker:    NewRowTracker(),
		filePrefix: cfg.EventFilePrefix,
		slug:       cfg.EventSlug,
		loc:        loc,
		now:        time.Now,
		log:        log.With(zap.String("service", "roster")),
		state:      ListLoading,
	}
}

// Tracker exposes the per-row statuses.
func (r *Roster) Tracker() *RowTracker {
	return r.tracker
}

// Close stops pending status expiries.
func (r *Roster) Close() {
	r.tracker.Stop()
}

// Fetch replaces the list with the backend's current one. On failure a
// populated list is kept and only the error is recorded. A fetch that
// completes after a later-started one has been applied is discarded.
func (r *Roster) Fetch(ctx context.Context) error {
	r.mu.Lock()
	r.started++
	seq := r.started
	r.mu.Unlock()

	list, err := r.backend.ListParticipants(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq < r.applied {
		r.log.Debug("discarding stale participant fetch", zap.Uint64("fetch", seq), zap.Uint64("applied", r.applied))
		return nil
	}
	r.applied = seq

	if err != nil {
		r.err = UserMessage(err, MsgFetchFailed)
		if r.list == nil {
			r.state = ListFailed
		}
		r.log.Error("failed to fetch participants", zap.Error(err))
		return fmt.Errorf("fetch participants: %w", err)
	}

	if list == nil {
		list = []models.Participant{}
	}
	r.list = list
	r.err = ""
	r.state = ListReady
	r.fetchedAt = r.now()
	return nil
}

// Snapshot returns the current list state.
func (r *Roster) Snapshot() RosterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RosterSnapshot{
		State:        r.state,
		Participants: r.list,
		Error:        r.err,
		FetchedAt:    r.fetchedAt,
	}
}

// Lookup finds a participant in the last fetched list without contacting
// the backend.
func (r *Roster) Lookup(id int64) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.list {
		if p.ID == id {
			return p, true
		}
	}
	return models.Participant{}, false
}

// Export renders the current list as a spreadsheet and returns its file name.
func (r *Roster) Export() (string, []byte, error) {
	snap := r.Snapshot()
	if len(snap.Participants) == 0 {
		r.log.Warn("export requested with no participants")
		return "", nil, ErrNothingToExport
	}

	data, err := ExportParticipants(snap.Participants, r.loc)
	if err != nil {
		return "", nil, err
	}

	r.log.Info("exported participants", zap.Int("count", len(snap.Participants)))
	return ExportFileName(r.slug, r.now().In(r.loc)), data, nil
}

// CertificateFileName is `<prefix>_Certificate_<Sanitized_Name>.pdf`.
func (r *Roster) CertificateFileName(p models.Participant) string {
	return r.filePrefix + "_Certificate_" + utils.SanitizeName(p.Name) + certificateFileSuffix
}

// DownloadCertificate fetches the backend-issued certificate for one
// participant. Failures are recorded on that row only.
func (r *Roster) DownloadCertificate(ctx context.Context, id int64) (string, []byte, error) {
	p, ok := r.Lookup(id)
	if !ok {
		return "", nil, ErrUnknownParticipant
	}

	r.tracker.Begin(ActionDownload, id)
	data, err := r.backend.DownloadCertificate(ctx, id)
	if err != nil {
		r.tracker.Fail(ActionDownload, id, UserMessage(err, MsgDownloadFailed))
		metrics.CertificateActions.WithLabelValues(string(ActionDownload), "failed").Inc()
		r.log.Error("certificate download failed", zap.Int64("participant_id", id), zap.Error(err))
		return "", nil, fmt.Errorf("download certificate %d: %w", id, err)
	}

	r.tracker.Succeed(ActionDownload, id, MsgDownloadSucceeded)
	metrics.CertificateActions.WithLabelValues(string(ActionDownload), "succeeded").Inc()
	return r.CertificateFileName(p), data, nil
}

// SendCertificate asks the backend to email one participant's certificate,
// then refreshes the list so the sent flag shows. A participant without an
// email is rejected before any request is made.
func (r *Roster) SendCertificate(ctx context.Context, id int64) error {
	p, ok := r.Lookup(id)
	if !ok {
		return ErrUnknownParticipant
	}
	if !p.HasEmail() {
		return ErrNoEmail
	}

	r.tracker.Begin(ActionSend, id)
	if err := r.backend.SendCertificate(ctx, id); err != nil {
		r.tracker.Fail(ActionSend, id, UserMessage(err, MsgSendFailed))
		metrics.CertificateActions.WithLabelValues(string(ActionSend), "failed").Inc()
		r.log.Error("certificate send failed", zap.Int64("participant_id", id), zap.Error(err))
		return fmt.Errorf("send certificate %d: %w", id, err)
	}

	r.tracker.Succeed(ActionSend, id, fmt.Sprintf(msgSendSucceededFmt, p.Email))
	metrics.CertificateActions.WithLabelValues(string(ActionSend), "succeeded").Inc()
	r.log.Info("certificate sent",
		zap.Int64("participant_id", id),
		zap.String("contact", utils.ContactHash(p.Email, "")),
	)

	if err := r.Fetch(ctx); err != nil {
		r.log.Warn("list refresh after send failed", zap.Error(err))
	}
	return nil
}
