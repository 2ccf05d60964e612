package geocode

import (
	"context"
	"fmt"
	"strings"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

// Static resolves addresses from a fixed table. It is used when no API key
// is configured so that development setups can still place orders by address.
type Static map[string]domain.Location

// Geocode looks the address up case-insensitively.
func (s Static) Geocode(_ context.Context, address string) (domain.Location, error) {
	loc, ok := s[normalize(address)]
	if !ok {
		return domain.Location{}, fmt.Errorf("unknown address %q: %w", address, apperr.ErrGeocodeFailed)
	}
	if loc.Address == "" {
		loc.Address = strings.TrimSpace(address)
	}
	return loc, nil
}

// NewStatic builds a Static geocoder with normalized keys.
func NewStatic(entries map[string]domain.Location) Static {
	s := make(Static, len(entries))
	for k, v := range entries {
		s[normalize(k)] = v
	}
	return s
}

func normalize(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}
