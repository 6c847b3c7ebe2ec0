// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, so the bot never runs with a
// partial scenario table or a destination map lacking DEFAULT.
//
// Custom rules
// ------------
//   • `region` – two upper-case letters, or the reserved DEFAULT key.
//   • Cross-field: both Funnel.Scenarios and Destinations must carry DEFAULT.

package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var (
	v          = validator.New()
	regionExpr = regexp.MustCompile(`^[A-Z]{2}$`)
)

func init() {
	_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		return IsRegion(fl.Field().String())
	})
}

//
// public API
//

// IsRegion reports whether s is a two-letter upper-case code or DEFAULT.
func IsRegion(s string) bool {
	return s == DefaultRegion || regionExpr.MatchString(s)
}

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if _, ok := c.Funnel.Scenarios[DefaultRegion]; !ok {
		return fmt.Errorf("funnel.scenarios: %s bundle is required", DefaultRegion)
	}
	if _, ok := c.Destinations[DefaultRegion]; !ok {
		return fmt.Errorf("destinations: %s entry is required", DefaultRegion)
	}
	return nil
}
