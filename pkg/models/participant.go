package models

import (
	"strconv"
	"strings"
	"time"
)

// Participant is a registration as recorded by the backend.
type Participant struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	Message           string     `json:"message"`
	CreatedAt         time.Time  `json:"created_at"`
	CertificateSent   bool       `json:"certificate_sent"`
	CertificateSentAt *time.Time `json:"certificate_sent_at,omitempty"`

	City              *string    `json:"city,omitempty"`
	State             *string    `json:"state,omitempty"`
	Country           *string    `json:"country,omitempty"`
	CountryCode       *string    `json:"country_code,omitempty"`
	FullAddress       *string    `json:"full_address,omitempty"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	LocationAccuracy  *float64   `json:"location_accuracy,omitempty"`
	LocationTimestamp *time.Time `json:"location_timestamp,omitempty"`
}

// IDString returns the id in the form used in URLs.
func (p Participant) IDString() string {
	return strconv.FormatInt(p.ID, 10)
}

// HasEmail reports whether the participant can be emailed.
func (p Participant) HasEmail() bool {
	return strings.TrimSpace(p.Email) != ""
}

// HasLocation reports whether the registration carried a usable location.
func (p Participant) HasLocation() bool {
	return (p.City != nil && *p.City != "") || (p.Latitude != nil && *p.Latitude != 0)
}

// VerifyResponse is the backend's answer to a certificate lookup.
type VerifyResponse struct {
	Valid       bool                  `json:"valid"`
	Participant *CertifiedParticipant `json:"participant,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// CertifiedParticipant is the subset of a participant the verify endpoint exposes.
type CertifiedParticipant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IssueDate time.Time `json:"issueDate"`
}
