// Package license implements the entitlement evaluator: the accept/reject
// decision plus device and usage bookkeeping executed on every validation
// request.
package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/geo"
	"licensegate/internal/store"
	"licensegate/pkg/contracts/domain"
)

// ValidationRequest carries one entitlement check. Fingerprint is optional;
// without it the request validates the license but registers no device.
type ValidationRequest struct {
	LicenseKey      string
	ServerIP        string
	ServerPort      string
	ServerName      string
	PluginVersion   string
	Fingerprint     string
	OperatingSystem string
}

// Decision is the successful outcome of a validation request.
type Decision struct {
	LicenseType  domain.LicenseType
	CustomerName string
	Features     []string
}

// Evaluator decides entitlement and performs device registration and usage
// bookkeeping. Concurrent validations of the same license key are serialized
// around the device-cap check and the usage append; distinct keys proceed in
// parallel.
type Evaluator struct {
	store  store.Store
	geo    *geo.Resolver
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEvaluator creates an evaluator over the credential store and the
// offline geolocation resolver.
func NewEvaluator(st store.Store, resolver *geo.Resolver, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		store:  st,
		geo:    resolver,
		logger: logger.With(slog.String("component", "evaluator")),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// licenseLock returns the mutex dedicated to a license key, creating it on
// first use. Lock entries are never removed; the set of live license keys is
// small and bounded by the admin-created key population.
func (e *Evaluator) licenseLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Validate runs the entitlement gates in order, each short-circuiting with a
// specific error kind: unknown key, inactive, expired, device cap, device
// deactivated. On success it registers or refreshes the device, appends a
// usage entry, and returns the decision.
func (e *Evaluator) Validate(ctx context.Context, req ValidationRequest) (*Decision, error) {
	lic, err := e.store.GetLicense(req.LicenseKey)
	if err != nil {
		if errors.Is(err, apierrors.ErrLicenseNotFound) {
			e.logger.InfoContext(ctx, "validation rejected: unknown license key")
			return nil, apierrors.ErrUnknownLicense
		}
		return nil, fmt.Errorf("failed to load license: %w", err)
	}

	if !lic.Active {
		e.logger.InfoContext(ctx, "validation rejected: license not active",
			slog.String("license_key", maskKey(lic.Key)))
		return nil, apierrors.ErrLicenseInactive
	}

	now := e.now()
	if lic.Expired(now) {
		e.logger.InfoContext(ctx, "validation rejected: license expired",
			slog.String("license_key", maskKey(lic.Key)),
			slog.Time("expiry", *lic.Expiry))
		return nil, apierrors.ErrLicenseExpired
	}

	// Best-effort: a geolocation miss records the unknown tuple, never a
	// failure.
	location := e.geo.Lookup(req.ServerIP)

	// The cap check, device write and usage append for one license must not
	// interleave with another validation of the same key, or two new
	// fingerprints could both observe count < cap and overshoot it.
	lock := e.licenseLock(req.LicenseKey)
	lock.Lock()
	defer lock.Unlock()

	if req.Fingerprint != "" {
		if err := e.registerDevice(ctx, lic, req, location, now); err != nil {
			return nil, err
		}
	}

	entry := domain.UsageEntry{
		Timestamp:     now,
		ServerIP:      req.ServerIP,
		ServerPort:    req.ServerPort,
		ServerName:    req.ServerName,
		PluginVersion: req.PluginVersion,
		Fingerprint:   req.Fingerprint,
	}
	if err := e.store.AppendUsage(lic.Key, entry); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	benefits := lic.Type.Benefits()
	e.logger.InfoContext(ctx, "validation accepted",
		slog.String("license_key", maskKey(lic.Key)),
		slog.String("license_type", string(lic.Type)),
		slog.String("server_name", req.ServerName))

	return &Decision{
		LicenseType:  lic.Type,
		CustomerName: lic.CustomerName,
		Features:     benefits.Features,
	}, nil
}

// registerDevice resolves the device for the request fingerprint: lazily
// created on first sight (subject to the cap), rejected when deactivated,
// metadata overwritten otherwise. Caller holds the license lock.
func (e *Evaluator) registerDevice(ctx context.Context, lic *domain.License, req ValidationRequest, location string, now time.Time) error {
	dev, err := e.store.GetDevice(lic.Key, req.Fingerprint)
	switch {
	case errors.Is(err, apierrors.ErrDeviceNotFound):
		count, err := e.store.CountActiveDevices(lic.Key)
		if err != nil {
			return fmt.Errorf("failed to count devices: %w", err)
		}
		benefits := lic.Type.Benefits()
		if !benefits.Unlimited() && count >= benefits.MaxDevices {
			e.logger.InfoContext(ctx, "validation rejected: device limit reached",
				slog.String("license_key", maskKey(lic.Key)),
				slog.Int("active_devices", count),
				slog.Int("max_devices", benefits.MaxDevices))
			return apierrors.ErrDeviceLimitReached
		}
		dev = &domain.Device{
			LicenseKey:  lic.Key,
			Fingerprint: req.Fingerprint,
			FirstSeen:   now,
		}
		e.logger.InfoContext(ctx, "new device registered",
			slog.String("license_key", maskKey(lic.Key)),
			slog.String("server_name", req.ServerName))

	case err != nil:
		return fmt.Errorf("failed to load device: %w", err)

	case !dev.Active:
		e.logger.InfoContext(ctx, "validation rejected: device deactivated",
			slog.String("license_key", maskKey(lic.Key)))
		return apierrors.ErrDeviceDeactivated
	}

	// Last-write-wins metadata refresh; FirstSeen survives.
	dev.ServerIP = req.ServerIP
	dev.ServerPort = req.ServerPort
	dev.ServerName = req.ServerName
	dev.PluginVersion = req.PluginVersion
	dev.OperatingSystem = req.OperatingSystem
	dev.Location = location
	dev.LastLogin = now
	dev.Active = true

	if err := e.store.UpsertDevice(dev); err != nil {
		return fmt.Errorf("failed to store device: %w", err)
	}
	return nil
}

// maskKey masks a license key for logging.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
