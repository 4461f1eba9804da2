package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/clients/backend"
	"github.com/vemana-jayanti/registration-portal/pkg/metrics"
)

const (
	MsgCertificateNotFound = "Certificate not found"
	MsgVerifyFailed        = "Failed to verify certificate"
)

// VerificationState is the terminal outcome of a certificate lookup.
type VerificationState int

const (
	VerificationInvalid VerificationState = iota
	VerificationValid
)

// Verification is what the verification page shows. Email and Phone are
// empty when the backend did not return them.
type Verification struct {
	State         VerificationState
	CertificateID string
	Name          string
	Email         string
	Phone         string
	IssueDate     time.Time
	Error         string
}

// Valid reports whether the certificate was confirmed.
func (v Verification) Valid() bool {
	return v.State == VerificationValid
}

// VerificationConfig formats the certificate ids shown on the page.
type VerificationConfig struct {
	Prefix string
	Year   int
}

// ParseCertificateID accepts a bare participant id or one formatted as
// `<prefix>-<id>-<year>` and returns the participant id.
func ParseCertificateID(prefix string, year int, s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if prefix != "" {
		s = strings.TrimPrefix(s, prefix+"-")
		s = strings.TrimSuffix(s, "-"+strconv.Itoa(year))
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// VerificationService looks up certificates by participant id.
type VerificationService interface {
	Verify(ctx context.Context, id string) Verification
}

type verificationServiceImpl struct {
	backend backend.Client
	cfg     VerificationConfig
	log     *zap.Logger
}

// NewVerificationService creates a new verification service
func NewVerificationService(backendClient backend.Client, cfg VerificationConfig, log *zap.Logger) VerificationService {
	return &verificationServiceImpl{
		backend: backendClient,
		cfg:     cfg,
		log:     log.With(zap.String("service", "verification")),
	}
}

// Verify queries the backend once with the participant id taken from the
// page address. Every outcome is terminal. The invalid outcome echoes the
// attempted id in certificate form; the valid one shows the id of the
// participant the backend returned.
func (s *verificationServiceImpl) Verify(ctx context.Context, id string) Verification {
	query := strings.TrimSpace(id)
	result := Verification{CertificateID: query}
	if pid, ok := ParseCertificateID(s.cfg.Prefix, s.cfg.Year, query); ok {
		query = strconv.FormatInt(pid, 10)
		result.CertificateID = CertificateID(s.cfg.Prefix, pid, s.cfg.Year)
	}

	resp, err := s.backend.Verify(ctx, query)
	if err != nil {
		result.Error = UserMessage(err, MsgVerifyFailed)
		s.log.Warn("certificate verification failed", zap.String("certificate_id", result.CertificateID), zap.Error(err))
		metrics.Verifications.WithLabelValues("error").Inc()
		return result
	}

	if !resp.Valid || resp.Participant == nil {
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = MsgCertificateNotFound
		}
		s.log.Info("certificate not valid", zap.String("certificate_id", result.CertificateID))
		metrics.Verifications.WithLabelValues("invalid").Inc()
		return result
	}

	p := resp.Participant
	result.State = VerificationValid
	result.CertificateID = CertificateID(s.cfg.Prefix, p.ID, s.cfg.Year)
	result.Name = p.Name
	result.Email = p.Email
	result.Phone = p.Phone
	result.IssueDate = p.IssueDate
	s.log.Info("certificate verified", zap.String("certificate_id", result.CertificateID))
	metrics.Verifications.WithLabelValues("valid").Inc()
	return result
}
