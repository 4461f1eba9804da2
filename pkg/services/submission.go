package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vemana-jayanti/registration-portal/pkg/clients/backend"
	"github.com/vemana-jayanti/registration-portal/pkg/metrics"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/utils"
)

// Messages shown when the backend gives no reason of its own.
const (
	MsgSubmitSucceeded = "Your registration has been received! May wisdom guide your path. 🙏"
	MsgSubmitFailed    = "Registration failed. Please try again."
)

// UserMessage returns the backend's own error text when err carries one and
// fallback otherwise.
func UserMessage(err error, fallback string) string {
	if msg, ok := backend.Message(err); ok {
		return msg
	}
	return fallback
}

// Compose builds the submission payload for an accepted form. The location
// object is present only when a reading exists and copies the reading's
// optional fields as they are.
func Compose(form models.RegistrationForm, reading *models.LocationReading) models.SubmissionPayload {
	payload := models.SubmissionPayload{
		Name:    form.Name,
		Email:   form.Email,
		Phone:   form.Phone,
		Message: form.Message,
	}
	if reading != nil {
		payload.Location = &models.LocationPayload{
			Latitude:    reading.Latitude,
			Longitude:   reading.Longitude,
			Accuracy:    reading.Accuracy,
			City:        reading.City,
			State:       reading.State,
			Country:     reading.Country,
			CountryCode: reading.CountryCode,
			FullAddress: reading.FullAddress,
			Timestamp:   reading.Timestamp,
		}
	}
	return payload
}

// SubmissionService validates registrations and hands them to the backend
type SubmissionService interface {
	Submit(ctx context.Context, form models.RegistrationForm, reading *models.LocationReading) error
}

type submissionServiceImpl struct {
	validator *Validator
	backend   backend.Client
	log       *zap.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(validator *Validator, backendClient backend.Client, log *zap.Logger) SubmissionService {
	return &submissionServiceImpl{
		validator: validator,
		backend:   backendClient,
		log:       log.With(zap.String("service", "submission")),
	}
}

// Submit validates form, composes the payload with reading and sends it once.
// A *ValidationError means nothing was sent.
func (s *submissionServiceImpl) Submit(ctx context.Context, form models.RegistrationForm, reading *models.LocationReading) error {
	contact := utils.ContactHash(form.Email, form.Phone)

	accepted, err := s.validator.Validate(form)
	if err != nil {
		s.log.Info("registration rejected", zap.String("contact", contact), zap.Error(err))
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return err
	}

	payload := Compose(accepted, reading)
	if err := s.backend.Submit(ctx, payload); err != nil {
		s.log.Error("registration submit failed", zap.String("contact", contact), zap.Error(err))
		metrics.Submissions.WithLabelValues("failed").Inc()
		return fmt.Errorf("submit registration: %w", err)
	}

	s.log.Info("registration submitted",
		zap.String("contact", contact),
		zap.Bool("with_location", payload.Location != nil),
	)
	metrics.Submissions.WithLabelValues("accepted").Inc()
	return nil
}
