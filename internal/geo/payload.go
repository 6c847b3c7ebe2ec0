// internal/geo/payload.go
//
// Mini-app payload parsing.
//
// The verification page posts one of two shapes back through the client:
//
//     lat:<float>,lon:<float>[,ip:<addr>]
//     error:<reason>
//
// The ip field is added by the page from the address our web server saw when
// it was loaded.  It is optional; providers that need an address fall back to
// their own defaults when it is missing.
package geo

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrMalformed means the payload does not carry two numeric coordinates.
	ErrMalformed = errors.New("malformed location payload")
	// ErrClientDenied means the browser refused or failed to share a location.
	ErrClientDenied = errors.New("client could not determine location")
)

// Location is one verification attempt.
type Location struct {
	Lat float64
	Lon float64
	IP  net.IP // nil when the page did not report one
}

// ParsePayload decodes the mini-app payload.
func ParsePayload(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(strings.ToLower(raw), "error") {
		return Location{}, ErrClientDenied
	}

	var loc Location
	var haveLat, haveLon bool
	for _, part := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return Location{}, fmt.Errorf("%w: field %q", ErrMalformed, part)
		}
		val = strings.TrimSpace(val)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "lat":
			f, err := parseCoord(val, 90)
			if err != nil {
				return Location{}, err
			}
			loc.Lat, haveLat = f, true
		case "lon":
			f, err := parseCoord(val, 180)
			if err != nil {
				return Location{}, err
			}
			loc.Lon, haveLon = f, true
		case "ip":
			// IPv6 addresses contain colons; Cut only split on the first.
			loc.IP = net.ParseIP(val)
		default:
			return Location{}, fmt.Errorf("%w: unknown field %q", ErrMalformed, key)
		}
	}
	if !haveLat || !haveLon {
		return Location{}, fmt.Errorf("%w: want lat and lon", ErrMalformed)
	}
	return loc, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
	}
	if math.IsNaN(f) || f < -limit || f > limit {
		return 0, fmt.Errorf("%w: %v out of range", ErrMalformed, f)
	}
	return f, nil
}
