package models

// RegistrationForm represents the data entered on the registration page
type RegistrationForm struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Phone   string `json:"phone" form:"phone"`
	Message string `json:"message" form:"message"`
}

// SubmissionPayload is the body sent to the backend's submit endpoint.
// Location is nil when the session has no reading.
type SubmissionPayload struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Phone    string           `json:"phone"`
	Message  string           `json:"message"`
	Location *LocationPayload `json:"location,omitempty"`
}

// LocationPayload mirrors LocationReading on the wire. Optional place fields
// are omitted when the reading does not carry them.
type LocationPayload struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Accuracy    float64 `json:"accuracy"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	Country     *string `json:"country,omitempty"`
	CountryCode *string `json:"countryCode,omitempty"`
	FullAddress *string `json:"fullAddress,omitempty"`
	Timestamp   string  `json:"timestamp"`
}
