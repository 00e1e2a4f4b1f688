package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/store"
	"licensegate/pkg/contracts/domain"
)

// AdminService is the license lifecycle manager: key issuance, updates, and
// per-device administration.
type AdminService interface {
	CreateLicense(ctx context.Context, params CreateLicenseParams) (*domain.License, error)
	UpdateLicense(ctx context.Context, key string, update domain.LicenseUpdate) (*LicenseOverview, error)
	ListLicenses(ctx context.Context) ([]*LicenseOverview, error)
	ListDevices(ctx context.Context, licenseKey string) (*DeviceReport, error)
	SetDeviceActive(ctx context.Context, licenseKey, fingerprint string, active bool) (*domain.Device, error)
	DeleteDevice(ctx context.Context, licenseKey, fingerprint string) error
	ResetDevices(ctx context.Context, licenseKey string) error
}

// CreateLicenseParams are the admin-supplied attributes of a new license.
// Key and creation time are always server-generated.
type CreateLicenseParams struct {
	CustomerName string
	Type         domain.LicenseType
	Expiry       *time.Time
	AllowedIPs   []string
}

// LicenseOverview is a license joined with its device population, served by
// the admin listing.
type LicenseOverview struct {
	*domain.License
	Benefits      domain.Benefits        `json:"benefits"`
	Devices       []domain.DeviceSummary `json:"devices"`
	ActiveDevices int                    `json:"activeDevices"`
	TotalDevices  int                    `json:"totalDevices"`
	MaxDevices    int                    `json:"maxDevices"`
}

// DeviceReport is the per-license device listing with occupancy counts.
type DeviceReport struct {
	LicenseKey    string           `json:"licenseKey"`
	Devices       []*domain.Device `json:"devices"`
	ActiveDevices int              `json:"activeDevices"`
	TotalDevices  int              `json:"totalDevices"`
	MaxDevices    int              `json:"maxDevices"`
}

type adminService struct {
	store  store.Store
	logger *slog.Logger
}

// NewAdminService creates the lifecycle manager over the credential store.
func NewAdminService(st store.Store, logger *slog.Logger) AdminService {
	return &adminService{
		store:  st,
		logger: logger.With(slog.String("component", "admin_service")),
	}
}

// CreateLicense issues a new license under a freshly generated 128-bit hex
// key. Keys come from crypto/rand; a collision would need a broken entropy
// source, so insert conflicts surface as errors rather than retries.
func (s *adminService) CreateLicense(ctx context.Context, params CreateLicenseParams) (*domain.License, error) {
	if params.CustomerName == "" {
		return nil, apierrors.NewValidationError("Customer name is required")
	}
	if !params.Type.Valid() {
		return nil, apierrors.NewValidationError(fmt.Sprintf("Unknown license type %q", params.Type))
	}

	key, err := generateLicenseKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate license key: %w", err)
	}

	lic := &domain.License{
		Key:          key,
		CustomerName: params.CustomerName,
		Type:         params.Type,
		Active:       true,
		Expiry:       params.Expiry,
		AllowedIPs:   params.AllowedIPs,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateLicense(lic); err != nil {
		return nil, fmt.Errorf("failed to store license: %w", err)
	}

	s.logger.InfoContext(ctx, "license created",
		slog.String("customer", params.CustomerName),
		slog.String("license_type", string(params.Type)))
	return lic, nil
}

// UpdateLicense applies a partial update. Only fields set on the update are
// touched; key, creation time and usage history are immutable here. The
// refreshed record is returned joined with its device population.
func (s *adminService) UpdateLicense(ctx context.Context, key string, update domain.LicenseUpdate) (*LicenseOverview, error) {
	if update.Type != nil && !update.Type.Valid() {
		return nil, apierrors.NewValidationError(fmt.Sprintf("Unknown license type %q", *update.Type))
	}

	lic, err := s.store.UpdateLicense(key, update)
	if err != nil {
		return nil, err
	}

	ov, err := s.overview(lic)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "license updated",
		slog.String("license_key", maskLicenseKey(key)))
	return ov, nil
}

// ListLicenses returns every license joined with its device summaries and
// occupancy counts.
func (s *adminService) ListLicenses(ctx context.Context) ([]*LicenseOverview, error) {
	licenses, err := s.store.ListLicenses()
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}

	overviews := make([]*LicenseOverview, 0, len(licenses))
	for _, lic := range licenses {
		ov, err := s.overview(lic)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, ov)
	}
	return overviews, nil
}

// overview joins a license with its device summaries and occupancy counts.
func (s *adminService) overview(lic *domain.License) (*LicenseOverview, error) {
	devices, err := s.store.ListDevices(lic.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices for license: %w", err)
	}

	summaries := make([]domain.DeviceSummary, 0, len(devices))
	active := 0
	for _, dev := range devices {
		summaries = append(summaries, dev.Summary())
		if dev.Active {
			active++
		}
	}

	return &LicenseOverview{
		License:       lic,
		Benefits:      lic.Type.Benefits(),
		Devices:       summaries,
		ActiveDevices: active,
		TotalDevices:  len(devices),
		MaxDevices:    lic.Type.Benefits().MaxDevices,
	}, nil
}

// ListDevices returns the full device records for one license.
func (s *adminService) ListDevices(ctx context.Context, licenseKey string) (*DeviceReport, error) {
	lic, err := s.store.GetLicense(licenseKey)
	if err != nil {
		return nil, err
	}

	devices, err := s.store.ListDevices(licenseKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	active := 0
	for _, dev := range devices {
		if dev.Active {
			active++
		}
	}
	return &DeviceReport{
		LicenseKey:    licenseKey,
		Devices:       devices,
		ActiveDevices: active,
		TotalDevices:  len(devices),
		MaxDevices:    lic.Type.Benefits().MaxDevices,
	}, nil
}

// SetDeviceActive flips one device's active flag. Deactivating frees its
// capacity slot immediately; reactivating does not re-check the cap, the
// admin's call wins.
func (s *adminService) SetDeviceActive(ctx context.Context, licenseKey, fingerprint string, active bool) (*domain.Device, error) {
	if _, err := s.store.GetLicense(licenseKey); err != nil {
		return nil, err
	}
	dev, err := s.store.SetDeviceActive(licenseKey, fingerprint, active)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "device state changed",
		slog.String("license_key", maskLicenseKey(licenseKey)),
		slog.Bool("active", active))
	return dev, nil
}

// DeleteDevice removes a device record entirely, freeing its slot and its
// fingerprint for re-registration.
func (s *adminService) DeleteDevice(ctx context.Context, licenseKey, fingerprint string) error {
	if _, err := s.store.GetLicense(licenseKey); err != nil {
		return err
	}
	if err := s.store.DeleteDevice(licenseKey, fingerprint); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "device deleted",
		slog.String("license_key", maskLicenseKey(licenseKey)))
	return nil
}

// ResetDevices wipes every device registered under a license.
func (s *adminService) ResetDevices(ctx context.Context, licenseKey string) error {
	if _, err := s.store.GetLicense(licenseKey); err != nil {
		return err
	}
	if err := s.store.DeleteAllDevices(licenseKey); err != nil {
		return fmt.Errorf("failed to reset devices: %w", err)
	}
	s.logger.InfoContext(ctx, "devices reset",
		slog.String("license_key", maskLicenseKey(licenseKey)))
	return nil
}

// generateLicenseKey produces a 32-character lowercase hex key from 16
// random bytes.
func generateLicenseKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// maskLicenseKey masks a license key for logging.
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
