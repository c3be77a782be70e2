// Package identifier generates and validates prefixed, opaque string identifiers.
//
// Identifiers have the form "<prefix><uuid>", e.g. "order_0190f3c2-...". The uuid part is a
// version 7 UUID so identifiers sort roughly by creation time.
package identifier

import (
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/allisson/orders/internal/errors"
)

const (
	OrderPrefix    = "order_"
	CustomerPrefix = "customer_"
	ProductPrefix  = "product_"
)

var (
	// ErrEmptyIdentifier indicates an identifier is empty after trimming.
	ErrEmptyIdentifier = apperrors.Wrap(apperrors.ErrInvalidInput, "identifier cannot be empty")

	// ErrInvalidIdentifier indicates an identifier does not carry the expected prefix.
	ErrInvalidIdentifier = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid identifier")
)

// New returns a fresh identifier carrying the given prefix.
func New(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}

// Parse trims value and checks that it starts with prefix followed by a non-empty suffix.
func Parse(prefix, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyIdentifier
	}

	suffix, ok := strings.CutPrefix(value, prefix)
	if !ok || suffix == "" {
		return "", apperrors.Wrapf(ErrInvalidIdentifier, "expected prefix %q in %q", prefix, value)
	}

	return value, nil
}
