package domain

import "fmt"

// LicenseType is the closed enumeration of license tiers. Each tier maps to
// a fixed Benefits record; adding a tier is a compile-time-checked change to
// the benefits table below.
type LicenseType string

const (
	LicenseTypeStandard  LicenseType = "standard"
	LicenseTypePremium   LicenseType = "premium"
	LicenseTypeUnlimited LicenseType = "unlimited"
)

// UnlimitedDevices is the MaxDevices sentinel for tiers without a device cap.
const UnlimitedDevices = -1

// Benefits describes what a license tier grants: a feature set and the
// maximum number of concurrently active devices.
type Benefits struct {
	Description string   `json:"description"`
	Features    []string `json:"features"`
	MaxDevices  int      `json:"max_devices"`
}

// Unlimited reports whether the tier has no device cap.
func (b Benefits) Unlimited() bool {
	return b.MaxDevices == UnlimitedDevices
}

// licenseBenefits is the exhaustive tier table. Every LicenseType constant
// must have an entry here; Valid and Benefits rely on it.
var licenseBenefits = map[LicenseType]Benefits{
	LicenseTypeStandard: {
		Description: "Standard license - core functionality",
		Features:    []string{"core_features", "priority_support", "single_server"},
		MaxDevices:  1,
	},
	LicenseTypePremium: {
		Description: "Premium license - advanced functionality",
		Features:    []string{"all_standard_features", "advanced_features", "priority_bug_fixes", "up_to_three_servers"},
		MaxDevices:  3,
	},
	LicenseTypeUnlimited: {
		Description: "Unlimited license - full functionality",
		Features:    []string{"all_premium_features", "full_feature_set", "unlimited_servers", "custom_feature_priority"},
		MaxDevices:  UnlimitedDevices,
	},
}

// Valid reports whether t is a known license tier.
func (t LicenseType) Valid() bool {
	_, ok := licenseBenefits[t]
	return ok
}

// Benefits returns the benefits record for the tier. Unknown tiers fall back
// to the standard tier so a corrupted record degrades to the most
// restrictive cap instead of an unbounded one.
func (t LicenseType) Benefits() Benefits {
	if b, ok := licenseBenefits[t]; ok {
		return b
	}
	return licenseBenefits[LicenseTypeStandard]
}

// AllBenefits returns the full tier catalog keyed by tier name, as served by
// the public license-types endpoint.
func AllBenefits() map[LicenseType]Benefits {
	out := make(map[LicenseType]Benefits, len(licenseBenefits))
	for t, b := range licenseBenefits {
		out[t] = b
	}
	return out
}

// ParseLicenseType converts a string into a LicenseType, defaulting empty
// input to the standard tier.
func ParseLicenseType(s string) (LicenseType, error) {
	if s == "" {
		return LicenseTypeStandard, nil
	}
	t := LicenseType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown license type %q", s)
	}
	return t, nil
}
