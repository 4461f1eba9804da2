package models

// LocationReading is one geolocation sample plus whatever place description
// the reverse geocoder could resolve for it.
type LocationReading struct {
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

// HasPlace reports whether reverse geocoding resolved anything.
func (r *LocationReading) HasPlace() bool {
	return r.City != nil || r.State != nil || r.Country != nil || r.FullAddress != nil
}

// Position is a raw fix as reported by the device.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}
