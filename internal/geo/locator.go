// internal/geo/locator.go
//
// Region lookup.
//
// Context
// -------
// A Locator turns a verification attempt into a two-letter region code.  The
// funnel engine only sees the code or an error and treats every error the
// same way ("cannot verify").
//
// Two providers ship with the bot:
//
//   • IPInfo   – HTTP JSON API at ipinfo.io (or a compatible endpoint).
//   • MaxMind  – local GeoLite2/GeoIP2 Country or City database.
//
// Chain tries providers in configured order and returns the first success,
// so a local database can back up the remote API or the reverse.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolved means no provider produced a region code.
var ErrUnresolved = errors.New("region could not be resolved")

// Locator resolves a Location to an upper-case ISO 3166-1 alpha-2 code.
type Locator interface {
	Locate(ctx context.Context, loc Location) (string, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context, loc Location) (string, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context, loc Location) (string, error) {
	return f(ctx, loc)
}

// Chain is an ordered list of providers.
type Chain []Locator

// Locate returns the first provider's success.  The error wraps
// ErrUnresolved together with every provider's failure.
func (c Chain) Locate(ctx context.Context, loc Location) (string, error) {
	if len(c) == 0 {
		return "", fmt.Errorf("%w: no providers configured", ErrUnresolved)
	}
	var errs []error
	for _, l := range c {
		code, err := l.Locate(ctx, loc)
		if err == nil {
			return code, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrUnresolved, errors.Join(errs...))
}

// normalizeCode upper-cases code and checks it is two ASCII letters.
func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", fmt.Errorf("%w: unexpected region %q", ErrUnresolved, code)
	}
	return code, nil
}
