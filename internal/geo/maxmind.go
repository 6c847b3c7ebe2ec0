// internal/geo/maxmind.go
//
// MaxMind provider backed by a local GeoLite2/GeoIP2 database.  The reader
// is safe for concurrent lookups and is opened once at startup.
package geo

import (
	"context"
	"fmt"

	"github.com/oschwald/geoip2-golang"
)

// MaxMind looks up the payload IP in a local database.
type MaxMind struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the database at path.  Both Country and City editions
// work; only the country record is read.
func OpenMaxMind(path string) (*MaxMind, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maxmind db %s: %w", path, err)
	}
	return &MaxMind{reader: r}, nil
}

// Locate implements Locator.
func (m *MaxMind) Locate(_ context.Context, loc Location) (string, error) {
	if loc.IP == nil {
		return "", fmt.Errorf("maxmind: %w: no client ip in payload", ErrUnresolved)
	}
	rec, err := m.reader.Country(loc.IP)
	if err != nil {
		return "", fmt.Errorf("maxmind lookup %s: %w", loc.IP, err)
	}
	if rec.Country.IsoCode == "" {
		return "", fmt.Errorf("maxmind: %w: %s not in database", ErrUnresolved, loc.IP)
	}
	return normalizeCode(rec.Country.IsoCode)
}

// Close releases the database.
func (m *MaxMind) Close() error { return m.reader.Close() }
