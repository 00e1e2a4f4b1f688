package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	apierrors "licensegate/internal/errors"
	"licensegate/pkg/contracts/domain"
)

const (
	bucketLicenses = "licenses"
	bucketDevices  = "devices"
	bucketUsers    = "users"
	bucketSettings = "settings"
)

// BBoltStore is the bbolt-backed credential store. Every mutation runs inside
// a single Update transaction, so composed read-modify-write sequences on one
// record are atomic with respect to other writers.
type BBoltStore struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// bucket layout exists.
func Open(path string) (*BBoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	st := &BBoltStore{db: db}
	if err := st.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketLicenses, bucketDevices, bucketUsers, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Close closes the underlying database.
func (s *BBoltStore) Close() error { return s.db.Close() }

// GetLicense returns the license for key, or ErrLicenseNotFound.
func (s *BBoltStore) GetLicense(key string) (*domain.License, error) {
	var lic *domain.License
	if err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		lic, err = getLicense(tx, key)
		return err
	}); err != nil {
		return nil, err
	}
	return lic, nil
}

// CreateLicense stores a new license. The key must not already exist.
func (s *BBoltStore) CreateLicense(lic *domain.License) error {
	buf, err := json.Marshal(lic)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLicenses))
		if b.Get([]byte(lic.Key)) != nil {
			return fmt.Errorf("license key collision for %q", lic.Key)
		}
		if err := b.Put([]byte(lic.Key), buf); err != nil {
			return err
		}
		devices := tx.Bucket([]byte(bucketDevices))
		_, err := devices.CreateBucketIfNotExists([]byte(lic.Key))
		return err
	})
}

// UpdateLicense applies a partial update and returns the refreshed record.
// Unset fields are left unchanged.
func (s *BBoltStore) UpdateLicense(key string, update domain.LicenseUpdate) (*domain.License, error) {
	var updated *domain.License
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		lic, err := getLicense(tx, key)
		if err != nil {
			return err
		}
		if update.Active != nil {
			lic.Active = *update.Active
		}
		if update.ClearExpiry {
			lic.Expiry = nil
		} else if update.Expiry != nil {
			lic.Expiry = update.Expiry
		}
		if update.AllowedIPs != nil {
			lic.AllowedIPs = *update.AllowedIPs
		}
		if update.CustomerName != nil {
			lic.CustomerName = *update.CustomerName
		}
		if update.Type != nil {
			lic.Type = *update.Type
		}
		updated = lic
		return putLicense(tx, lic)
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// ListLicenses returns all licenses ordered newest first.
func (s *BBoltStore) ListLicenses() ([]*domain.License, error) {
	var out []*domain.License
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLicenses))
		return b.ForEach(func(k, v []byte) error {
			var lic domain.License
			if err := json.Unmarshal(v, &lic); err != nil {
				return err
			}
			out = append(out, &lic)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AppendUsage appends a usage entry and updates lastUsed in one transaction.
// The history is trimmed to domain.MaxUsageHistory, oldest entries first.
func (s *BBoltStore) AppendUsage(key string, entry domain.UsageEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		lic, err := getLicense(tx, key)
		if err != nil {
			return err
		}
		lic.UsageHistory = append(lic.UsageHistory, entry)
		if n := len(lic.UsageHistory); n > domain.MaxUsageHistory {
			lic.UsageHistory = lic.UsageHistory[n-domain.MaxUsageHistory:]
		}
		ts := entry.Timestamp
		lic.LastUsed = &ts
		return putLicense(tx, lic)
	})
}

// GetDevice returns the device registered under (licenseKey, fingerprint),
// or ErrDeviceNotFound.
func (s *BBoltStore) GetDevice(licenseKey, fingerprint string) (*domain.Device, error) {
	var dev *domain.Device
	if err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		dev, err = getDevice(tx, licenseKey, fingerprint)
		return err
	}); err != nil {
		return nil, err
	}
	return dev, nil
}

// ListDevices returns all devices for a license, most recently seen first.
func (s *BBoltStore) ListDevices(licenseKey string) ([]*domain.Device, error) {
	devices := make([]*domain.Device, 0)
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := deviceBucket(tx, licenseKey)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var dev domain.Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			devices = append(devices, &dev)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastLogin.After(devices[j].LastLogin)
	})
	return devices, nil
}

// CountActiveDevices counts devices with active=true for a license.
func (s *BBoltStore) CountActiveDevices(licenseKey string) (int, error) {
	n := 0
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := deviceBucket(tx, licenseKey)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var dev domain.Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return err
			}
			if dev.Active {
				n++
			}
			return nil
		})
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// UpsertDevice creates or overwrites the device record keyed by its
// (licenseKey, fingerprint) identity. Overwrites are last-write-wins.
func (s *BBoltStore) UpsertDevice(dev *domain.Device) error {
	buf, err := json.Marshal(dev)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketDevices))
		b, err := root.CreateBucketIfNotExists([]byte(dev.LicenseKey))
		if err != nil {
			return err
		}
		return b.Put([]byte(dev.Fingerprint), buf)
	})
}

// SetDeviceActive flips the active flag on a device and returns the updated
// record.
func (s *BBoltStore) SetDeviceActive(licenseKey, fingerprint string, active bool) (*domain.Device, error) {
	var updated *domain.Device
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		dev, err := getDevice(tx, licenseKey, fingerprint)
		if err != nil {
			return err
		}
		dev.Active = active
		updated = dev
		buf, err := json.Marshal(dev)
		if err != nil {
			return err
		}
		return deviceBucket(tx, licenseKey).Put([]byte(fingerprint), buf)
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDevice removes a single device record.
func (s *BBoltStore) DeleteDevice(licenseKey, fingerprint string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getDevice(tx, licenseKey, fingerprint); err != nil {
			return err
		}
		return deviceBucket(tx, licenseKey).Delete([]byte(fingerprint))
	})
}

// DeleteAllDevices removes every device registered under the license. The
// license record itself is untouched.
func (s *BBoltStore) DeleteAllDevices(licenseKey string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketDevices))
		if root.Bucket([]byte(licenseKey)) == nil {
			return nil
		}
		if err := root.DeleteBucket([]byte(licenseKey)); err != nil {
			return err
		}
		_, err := root.CreateBucketIfNotExists([]byte(licenseKey))
		return err
	})
}

// GetUser returns the admin user record, or ErrUserNotFound.
func (s *BBoltStore) GetUser(username string) (*domain.AdminUser, error) {
	var user *domain.AdminUser
	if err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketUsers)).Get([]byte(username))
		if v == nil {
			return apierrors.ErrUserNotFound
		}
		user = &domain.AdminUser{}
		return json.Unmarshal(v, user)
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser stores a new user. The first-user-is-admin decision is made
// inside the same transaction as the insert so two concurrent first
// registrations cannot both be promoted.
func (s *BBoltStore) CreateUser(user *domain.AdminUser) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUsers))
		if b.Get([]byte(user.Username)) != nil {
			return apierrors.ErrDuplicateUsername
		}
		admins, err := countAdmins(tx)
		if err != nil {
			return err
		}
		user.IsAdmin = admins == 0
		buf, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(user.Username), buf)
	})
}

// UpdateUser overwrites an existing user record.
func (s *BBoltStore) UpdateUser(user *domain.AdminUser) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUsers))
		if b.Get([]byte(user.Username)) == nil {
			return apierrors.ErrUserNotFound
		}
		buf, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(user.Username), buf)
	})
}

// CountAdmins counts users with the admin flag set.
func (s *BBoltStore) CountAdmins() (int, error) {
	var n int
	if err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		n, err = countAdmins(tx)
		return err
	}); err != nil {
		return 0, err
	}
	return n, nil
}

// GetSetting returns the setting value, or empty string when unset.
func (s *BBoltStore) GetSetting(key string) (string, error) {
	var value string
	if err := s.db.View(func(tx *bbolt.Tx) error {
		value = string(tx.Bucket([]byte(bucketSettings)).Get([]byte(key)))
		return nil
	}); err != nil {
		return "", err
	}
	return value, nil
}

// PutSetting stores a setting value.
func (s *BBoltStore) PutSetting(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSettings)).Put([]byte(key), []byte(value))
	})
}

func getLicense(tx *bbolt.Tx, key string) (*domain.License, error) {
	v := tx.Bucket([]byte(bucketLicenses)).Get([]byte(key))
	if v == nil {
		return nil, apierrors.ErrLicenseNotFound
	}
	var lic domain.License
	if err := json.Unmarshal(v, &lic); err != nil {
		return nil, err
	}
	return &lic, nil
}

func putLicense(tx *bbolt.Tx, lic *domain.License) error {
	buf, err := json.Marshal(lic)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketLicenses)).Put([]byte(lic.Key), buf)
}

func deviceBucket(tx *bbolt.Tx, licenseKey string) *bbolt.Bucket {
	return tx.Bucket([]byte(bucketDevices)).Bucket([]byte(licenseKey))
}

func getDevice(tx *bbolt.Tx, licenseKey, fingerprint string) (*domain.Device, error) {
	b := deviceBucket(tx, licenseKey)
	if b == nil {
		return nil, apierrors.ErrDeviceNotFound
	}
	v := b.Get([]byte(fingerprint))
	if v == nil {
		return nil, apierrors.ErrDeviceNotFound
	}
	var dev domain.Device
	if err := json.Unmarshal(v, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

func countAdmins(tx *bbolt.Tx) (int, error) {
	n := 0
	err := tx.Bucket([]byte(bucketUsers)).ForEach(func(k, v []byte) error {
		var user domain.AdminUser
		if err := json.Unmarshal(v, &user); err != nil {
			return err
		}
		if user.IsAdmin {
			n++
		}
		return nil
	})
	return n, err
}
