// Package domain contains the core domain models for the license service.
// These types serve as the Single Source of Truth (SSOT) for all layers of
// the application: store, evaluator, lifecycle manager and HTTP transport.
package domain

import (
	"time"
)

// License is an entitlement record keyed by a random key, owned by a
// customer, granting feature access up to a device cap.
type License struct {
	Key          string       `json:"license_key" validate:"required"`
	CustomerName string       `json:"customer_name"`
	Type         LicenseType  `json:"type" validate:"required"`
	Active       bool         `json:"active"`
	Expiry       *time.Time   `json:"expiry,omitempty"`
	AllowedIPs   []string     `json:"allowed_ips,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastUsed     *time.Time   `json:"last_used,omitempty"`
	UsageHistory []UsageEntry `json:"usage_history"`
}

// Expired reports whether the license expiry is in the past relative to now.
// A license without an expiry never expires.
func (l *License) Expired(now time.Time) bool {
	return l.Expiry != nil && l.Expiry.Before(now)
}

// UsageEntry records a single successful validation against a license.
// The per-license history is bounded; see MaxUsageHistory.
type UsageEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	ServerIP      string    `json:"server_ip"`
	ServerPort    string    `json:"server_port"`
	ServerName    string    `json:"server_name"`
	PluginVersion string    `json:"plugin_version"`
	Fingerprint   string    `json:"motherboard_id,omitempty"`
}

// MaxUsageHistory is the usage history capacity per license. Once the
// history reaches this length the oldest entries are evicted first.
const MaxUsageHistory = 100

// LicenseUpdate is a partial update applied to a license. Nil fields are
// left unchanged. ClearExpiry removes the expiry, making the license
// perpetual; it wins over Expiry when both are set.
type LicenseUpdate struct {
	Active       *bool        `json:"active,omitempty"`
	Expiry       *time.Time   `json:"expiry,omitempty"`
	ClearExpiry  bool         `json:"clear_expiry,omitempty"`
	AllowedIPs   *[]string    `json:"allowed_ips,omitempty"`
	CustomerName *string      `json:"customer_name,omitempty"`
	Type         *LicenseType `json:"type,omitempty"`
}
