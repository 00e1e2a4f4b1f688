// Package store implements the credential store: durable keyed storage for
// licenses, devices, admin users and process-wide settings on an embedded
// bbolt database.
package store

import (
	"licensegate/pkg/contracts/domain"
)

// Store is the credential store contract consumed by the entitlement
// evaluator, the lifecycle manager and the access gate.
type Store interface {
	// Licenses
	GetLicense(key string) (*domain.License, error)
	CreateLicense(lic *domain.License) error
	UpdateLicense(key string, update domain.LicenseUpdate) (*domain.License, error)
	ListLicenses() ([]*domain.License, error)
	AppendUsage(key string, entry domain.UsageEntry) error

	// Devices
	GetDevice(licenseKey, fingerprint string) (*domain.Device, error)
	ListDevices(licenseKey string) ([]*domain.Device, error)
	CountActiveDevices(licenseKey string) (int, error)
	UpsertDevice(dev *domain.Device) error
	SetDeviceActive(licenseKey, fingerprint string, active bool) (*domain.Device, error)
	DeleteDevice(licenseKey, fingerprint string) error
	DeleteAllDevices(licenseKey string) error

	// Admin users
	GetUser(username string) (*domain.AdminUser, error)
	CreateUser(user *domain.AdminUser) error
	UpdateUser(user *domain.AdminUser) error
	CountAdmins() (int, error)

	// Settings
	GetSetting(key string) (string, error)
	PutSetting(key, value string) error

	Close() error
}

// Setting keys persisted in the settings bucket.
const (
	SettingTokenSecret = "token_secret"
)
