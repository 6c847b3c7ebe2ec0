// Package scenario maps a region code to its localized funnel bundle.
//
// A Catalog is built once from configuration and never mutated, so Resolve
// is safe for concurrent use without locking.  Resolve is total: unknown,
// empty, or lower-case codes all resolve, with DEFAULT as the fallback.
package scenario

import (
	"fmt"
	"strings"

	"github.com/yanizio/geofunnel/internal/config"
)

// Steps is the fixed length of the informational sequence.
const Steps = 4

// Bundle is the localized copy shown to one region.
type Bundle struct {
	Region      string // key the bundle was configured under
	Language    string
	Currency    string
	Steps       [Steps]string
	FinalButton string
}

// Step returns the text for step n (1-based).
func (b Bundle) Step(n int) string {
	if n < 1 || n > Steps {
		return ""
	}
	return b.Steps[n-1]
}

// Catalog is an immutable region → bundle table.
type Catalog struct {
	bundles  map[string]Bundle
	fallback Bundle
}

// NewCatalog converts config scenarios into bundles.  DEFAULT is required
// and every bundle must carry exactly four steps.
func NewCatalog(in map[string]config.Scenario) (*Catalog, error) {
	c := &Catalog{bundles: make(map[string]Bundle, len(in))}
	for key, sc := range in {
		key = strings.ToUpper(key)
		if len(sc.Steps) != Steps {
			return nil, fmt.Errorf("scenario %s: want %d steps, got %d", key, Steps, len(sc.Steps))
		}
		b := Bundle{
			Region:      key,
			Language:    sc.Language,
			Currency:    sc.Currency,
			FinalButton: sc.FinalButton,
		}
		copy(b.Steps[:], sc.Steps)
		c.bundles[key] = b
	}

	def, ok := c.bundles[config.DefaultRegion]
	if !ok {
		return nil, fmt.Errorf("scenario %s is required", config.DefaultRegion)
	}
	c.fallback = def
	return c, nil
}

// Resolve returns the bundle for region, or DEFAULT.
func (c *Catalog) Resolve(region string) Bundle {
	if b, ok := c.bundles[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return b
	}
	return c.fallback
}
