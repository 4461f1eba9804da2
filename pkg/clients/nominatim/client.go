package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Client defines the interface for reverse geocoding coordinates
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (*Place, error)
}

// Place is the subset of a reverse geocoding answer the portal keeps.
// Empty strings mean the geocoder did not return the component.
type Place struct {
	City        string
	State       string
	Country     string
	CountryCode string
	DisplayName string
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

type clientImpl struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a new reverse geocoding client. Nominatim's usage policy
// requires an identifying User-Agent.
func NewClient(baseURL, userAgent string, httpClient *http.Client, log *zap.Logger) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &clientImpl{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
		log:        log.With(zap.String("client", "nominatim")),
	}
}

func (c *clientImpl) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	params := url.Values{}
	params.Add("format", "json")
	params.Add("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Add("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error reverse geocoding: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from geocoder: status %d: %s", resp.StatusCode, string(body))
	}

	var response reverseResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("error from geocoder: %s", response.Error)
	}

	place := &Place{
		City:        firstNonEmpty(response.Address.City, response.Address.Town, response.Address.Village),
		State:       response.Address.State,
		Country:     response.Address.Country,
		CountryCode: response.Address.CountryCode,
		DisplayName: response.DisplayName,
	}

	c.log.Debug("resolved place", zap.String("city", place.City), zap.String("country", place.Country))
	return place, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
