package domain

import "time"

// Device is one registered client installation consuming a unit of its
// license's device cap. Identity is the (license key, fingerprint) pair;
// the fingerprint is a hardware-derived identifier supplied by the caller.
type Device struct {
	LicenseKey      string    `json:"license_key"`
	Fingerprint     string    `json:"device_id"`
	ServerIP        string    `json:"server_ip"`
	ServerPort      string    `json:"server_port"`
	ServerName      string    `json:"server_name"`
	PluginVersion   string    `json:"plugin_version"`
	OperatingSystem string    `json:"operating_system"`
	Location        string    `json:"location"`
	FirstSeen       time.Time `json:"first_seen"`
	LastLogin       time.Time `json:"last_login"`
	Active          bool      `json:"active"`
}

// DeviceSummary is the compact device view embedded in admin license
// listings.
type DeviceSummary struct {
	Fingerprint string `json:"device_id"`
	ServerName  string `json:"server_name"`
	Active      bool   `json:"active"`
}

// Summary returns the compact listing view of the device.
func (d *Device) Summary() DeviceSummary {
	return DeviceSummary{
		Fingerprint: d.Fingerprint,
		ServerName:  d.ServerName,
		Active:      d.Active,
	}
}
