// Package geo provides best-effort offline IP geolocation for device
// records. Lookups never fail a validation request: any miss resolves to the
// unknown location tuple.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Unknown is the location recorded when no geolocation data is available.
const Unknown = "unknown, unknown, unknown"

// Resolver resolves server IPs to a "country, region, city" display string
// using a local MaxMind database. A Resolver with no database open resolves
// everything to Unknown.
type Resolver struct {
	db *geoip2.Reader
}

// NewResolver opens the GeoLite2 database at path. An empty path returns a
// resolver that answers Unknown for every lookup; a missing or unreadable
// database is an error so a misconfigured path is caught at startup.
func NewResolver(path string) (*Resolver, error) {
	if path == "" {
		return &Resolver{}, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geolocation database: %w", err)
	}
	return &Resolver{db: db}, nil
}

// Lookup resolves ip to its location tuple. Unparseable IPs, private
// addresses and database misses all return Unknown; Lookup performs no
// network I/O and never returns an error.
func (r *Resolver) Lookup(ip string) string {
	if r == nil || r.db == nil {
		return Unknown
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}
	record, err := r.db.City(parsed)
	if err != nil || record == nil {
		return Unknown
	}

	country := record.Country.Names["en"]
	if country == "" {
		country = "unknown"
	}
	region := "unknown"
	if len(record.Subdivisions) > 0 {
		if name := record.Subdivisions[0].Names["en"]; name != "" {
			region = name
		}
	}
	city := record.City.Names["en"]
	if city == "" {
		city = "unknown"
	}

	return fmt.Sprintf("%s, %s, %s", country, region, city)
}

// Close closes the underlying database if one is open.
func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
