package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseTypeBenefits(t *testing.T) {
	tests := []struct {
		licType    LicenseType
		maxDevices int
		unlimited  bool
		feature    string
	}{
		{LicenseTypeStandard, 1, false, "core_features"},
		{LicenseTypePremium, 3, false, "advanced_features"},
		{LicenseTypeUnlimited, UnlimitedDevices, true, "unlimited_servers"},
	}

	for _, tt := range tests {
		t.Run(string(tt.licType), func(t *testing.T) {
			b := tt.licType.Benefits()
			assert.Equal(t, tt.maxDevices, b.MaxDevices)
			assert.Equal(t, tt.unlimited, b.Unlimited())
			assert.Contains(t, b.Features, tt.feature)
			assert.NotEmpty(t, b.Description)
		})
	}

	t.Run("unknown tier degrades to standard", func(t *testing.T) {
		b := LicenseType("platinum").Benefits()
		assert.Equal(t, 1, b.MaxDevices)
	})
}

func TestLicenseTypeValid(t *testing.T) {
	assert.True(t, LicenseTypeStandard.Valid())
	assert.True(t, LicenseTypePremium.Valid())
	assert.True(t, LicenseTypeUnlimited.Valid())
	assert.False(t, LicenseType("platinum").Valid())
	assert.False(t, LicenseType("").Valid())
}

func TestParseLicenseType(t *testing.T) {
	t.Run("empty defaults to standard", func(t *testing.T) {
		lt, err := ParseLicenseType("")
		require.NoError(t, err)
		assert.Equal(t, LicenseTypeStandard, lt)
	})

	t.Run("known tier", func(t *testing.T) {
		lt, err := ParseLicenseType("premium")
		require.NoError(t, err)
		assert.Equal(t, LicenseTypePremium, lt)
	})

	t.Run("unknown tier", func(t *testing.T) {
		_, err := ParseLicenseType("platinum")
		assert.Error(t, err)
	})
}

func TestAllBenefits(t *testing.T) {
	all := AllBenefits()
	require.Len(t, all, 3)
	assert.Contains(t, all, LicenseTypeStandard)
	assert.Contains(t, all, LicenseTypePremium)
	assert.Contains(t, all, LicenseTypeUnlimited)
}

func TestLicenseExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("no expiry never expires", func(t *testing.T) {
		lic := &License{}
		assert.False(t, lic.Expired(now))
	})

	t.Run("past expiry", func(t *testing.T) {
		lic := &License{Expiry: &past}
		assert.True(t, lic.Expired(now))
	})

	t.Run("future expiry", func(t *testing.T) {
		lic := &License{Expiry: &future}
		assert.False(t, lic.Expired(now))
	})
}
