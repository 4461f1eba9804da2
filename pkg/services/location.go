package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vemana-jayanti/registration-portal/pkg/clients/nominatim"
	"github.com/vemana-jayanti/registration-portal/pkg/models"
	"github.com/vemana-jayanti/registration-portal/pkg/session"
)

// LocationKey is the session key the serialized reading is stored under.
const LocationKey = "userLocation"

var (
	ErrPermissionDenied    = errors.New("user denied geolocation")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("timeout expired while acquiring position")
	ErrUnsupported         = errors.New("geolocation is not supported by this browser")
)

// PositionOptions are the constraints a position fix is requested with.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// PositionSource produces a single position fix.
type PositionSource interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (models.Position, error)
}

// PositionSourceFunc adapts a function to PositionSource.
type PositionSourceFunc func(ctx context.Context, opts PositionOptions) (models.Position, error)

func (f PositionSourceFunc) CurrentPosition(ctx context.Context, opts PositionOptions) (models.Position, error) {
	return f(ctx, opts)
}

// PositionError carries the device's own description of a failed fix.
type PositionError struct {
	Err     error
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// Browser GeolocationPositionError codes.
const (
	codePermissionDenied    = 1
	codePositionUnavailable = 2
	codeTimeout             = 3
)

// ReportedPosition is the outcome the page script observed from
// navigator.geolocation, replayed as a PositionSource.
type ReportedPosition struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    float64  `json:"accuracy"`
	ErrorCode   int      `json:"errorCode"`
	Message     string   `json:"message"`
	Unsupported bool     `json:"unsupported"`
}

func (r ReportedPosition) CurrentPosition(ctx context.Context, _ PositionOptions) (models.Position, error) {
	if err := ctx.Err(); err != nil {
		return models.Position{}, err
	}
	switch {
	case r.Unsupported:
		return models.Position{}, ErrUnsupported
	case r.ErrorCode == codePermissionDenied:
		return models.Position{}, &PositionError{Err: ErrPermissionDenied, Message: r.Message}
	case r.ErrorCode == codeTimeout:
		return models.Position{}, &PositionError{Err: ErrPositionTimeout, Message: r.Message}
	case r.ErrorCode != 0, r.Latitude == nil, r.Longitude == nil:
		return models.Position{}, &PositionError{Err: ErrPositionUnavailable, Message: r.Message}
	}
	return models.Position{Latitude: *r.Latitude, Longitude: *r.Longitude, Accuracy: r.Accuracy}, nil
}

// LocationState is what a view sees of the session's location.
type LocationState struct {
	Reading *models.LocationReading `json:"location"`
	Error   string                  `json:"error,omitempty"`
	Loading bool                    `json:"loading"`
}

type acquisition struct {
	err     string
	cleared bool
}

// LocationProvider owns the session-cached location reading. It is created
// once at startup and closed on shutdown.
type LocationProvider struct {
	store    session.Store
	geocoder nominatim.Client
	options  PositionOptions
	now      func() time.Time
	log      *zap.Logger

	group    singleflight.Group
	outcomes *expirable.LRU[string, acquisition]
	inflight *expirable.LRU[string, struct{}]
}

// NewLocationProvider creates a provider. timeout bounds every position fix;
// sessionTTL bounds how long per-session outcomes are remembered.
func NewLocationProvider(store session.Store, geocoder nominatim.Client, timeout, sessionTTL time.Duration, log *zap.Logger) *LocationProvider {
	return &LocationProvider{
		store:    store,
		geocoder: geocoder,
		options: PositionOptions{
			EnableHighAccuracy: true,
			Timeout:            timeout,
			MaximumAge:         0,
		},
		now:      time.Now,
		log:      log.With(zap.String("service", "location")),
		outcomes: expirable.NewLRU[string, acquisition](10000, nil, sessionTTL),
		inflight: expirable.NewLRU[string, struct{}](10000, nil, timeout+time.Minute),
	}
}

// Options returns the options a device should be asked for a fix with.
func (p *LocationProvider) Options() PositionOptions {
	return p.options
}

// Activate returns the session's cached reading, acquiring one from src
// only when nothing is cached. Concurrent activations of one session share a
// single acquisition.
func (p *LocationProvider) Activate(ctx context.Context, sessionID string, src PositionSource) LocationState {
	if reading := p.cached(ctx, sessionID); reading != nil {
		return LocationState{Reading: reading}
	}

	v, _, _ := p.group.Do(sessionID, func() (any, error) {
		return p.acquire(ctx, sessionID, src), nil
	})
	return v.(LocationState)
}

// Refresh drops the cached reading and acquires a new one from src.
func (p *LocationProvider) Refresh(ctx context.Context, sessionID string, src PositionSource) LocationState {
	if err := p.store.Delete(ctx, sessionID, LocationKey); err != nil {
		p.log.Warn("failed to drop cached location", zap.Error(err))
	}
	p.outcomes.Remove(sessionID)
	return p.Activate(ctx, sessionID, src)
}

// Clear drops the cached reading only.
func (p *LocationProvider) Clear(ctx context.Context, sessionID string) error {
	if err := p.store.Delete(ctx, sessionID, LocationKey); err != nil {
		return fmt.Errorf("clear location: %w", err)
	}
	p.outcomes.Add(sessionID, acquisition{cleared: true})
	return nil
}

// State reports the session's reading, last error and whether an
// acquisition is still outstanding.
func (p *LocationProvider) State(ctx context.Context, sessionID string) LocationState {
	if reading := p.cached(ctx, sessionID); reading != nil {
		return LocationState{Reading: reading}
	}
	if p.inflight.Contains(sessionID) {
		return LocationState{Loading: true}
	}
	outcome, ok := p.outcomes.Get(sessionID)
	if !ok {
		return LocationState{Loading: true}
	}
	return LocationState{Error: outcome.err}
}

// Reading returns the cached reading or nil.
func (p *LocationProvider) Reading(ctx context.Context, sessionID string) *models.LocationReading {
	return p.cached(ctx, sessionID)
}

// Close tears the provider down.
func (p *LocationProvider) Close() error {
	p.outcomes.Purge()
	p.inflight.Purge()
	return p.store.Close()
}

func (p *LocationProvider) cached(ctx context.Context, sessionID string) *models.LocationReading {
	raw, err := p.store.Get(ctx, sessionID, LocationKey)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			p.log.Warn("failed to read cached location", zap.Error(err))
		}
		return nil
	}
	var reading models.LocationReading
	if err := json.Unmarshal(raw, &reading); err != nil {
		p.log.Warn("discarding unreadable cached location", zap.Error(err))
		return nil
	}
	return &reading
}

func (p *LocationProvider) acquire(ctx context.Context, sessionID string, src PositionSource) LocationState {
	p.inflight.Add(sessionID, struct{}{})
	defer p.inflight.Remove(sessionID)

	fixCtx, cancel := context.WithTimeout(ctx, p.options.Timeout)
	pos, err := src.CurrentPosition(fixCtx, p.options)
	if err != nil && errors.Is(fixCtx.Err(), context.DeadlineExceeded) {
		err = ErrPositionTimeout
	}
	cancel()
	if err != nil {
		p.log.Warn("geolocation failed", zap.Error(err))
		p.outcomes.Add(sessionID, acquisition{err: err.Error()})
		return LocationState{Error: err.Error()}
	}

	reading := &models.LocationReading{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
	}

	place, err := p.geocoder.Reverse(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		p.log.Warn("reverse geocoding failed, keeping coordinates", zap.Error(err))
	} else {
		reading.City = optional(place.City)
		reading.State = optional(place.State)
		reading.Country = optional(place.Country)
		reading.CountryCode = optional(place.CountryCode)
		reading.FullAddress = optional(place.DisplayName)
	}
	reading.Timestamp = p.now().UTC().Format(time.RFC3339Nano)

	raw, err := json.Marshal(reading)
	if err == nil {
		err = p.store.Set(ctx, sessionID, LocationKey, raw)
	}
	if err != nil {
		p.log.Error("failed to cache location", zap.Error(err))
	}
	p.outcomes.Remove(sessionID)

	p.log.Info("location acquired",
		zap.Float64("accuracy_m", reading.Accuracy),
		zap.Bool("resolved", reading.HasPlace()),
	)
	return LocationState{Reading: reading}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
