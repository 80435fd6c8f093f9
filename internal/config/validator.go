// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load` calls `validateStruct` once defaults are applied and secrets are
// resolved.  Any tag mismatch aborts startup, so the binary never runs
// with partial, malformed, or missing configuration.  Errors are folded
// into one message naming every offending key, which reads better in a
// boot log than the validator's default multi-line dump.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// validateStruct returns nil or one error listing every failed field.
func validateStruct(c *Config) error {
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		// Config.Auth.JWTSecret -> Auth.JWTSecret
		name := strings.TrimPrefix(fe.Namespace(), "Config.")
		parts = append(parts, fmt.Sprintf("%s failed %q", name, fe.Tag()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(parts, "; "))
}
