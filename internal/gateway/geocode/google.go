// Package geocode resolves free-form addresses into coordinates.
package geocode

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

type counter interface {
	Inc()
}

// GoogleGateway is a geocoder backed by the Google Maps Geocoding API.
// Failures are reported as apperr.ErrGeocodeFailed and never retried here.
type GoogleGateway struct {
	client   *maps.Client
	region   string
	logger   logx.Logger
	failures counter
}

// NewGoogleGateway creates a geocoder for apiKey. Extra client options are
// passed through, which tests use to point the client at a fake server.
func NewGoogleGateway(apiKey, region string, logger logx.Logger, failures counter, opts ...maps.ClientOption) (*GoogleGateway, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &GoogleGateway{client: client, region: region, logger: logger, failures: failures}, nil
}

// Geocode returns the first match for address.
func (g *GoogleGateway) Geocode(ctx context.Context, address string) (domain.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Location{}, fmt.Errorf("empty address: %w", apperr.ErrGeocodeFailed)
	}

	res, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address, Region: g.region})
	if err != nil {
		g.fail(address, err)
		return domain.Location{}, fmt.Errorf("geocoding api error: %v: %w", err, apperr.ErrGeocodeFailed)
	}
	if len(res) == 0 {
		g.fail(address, nil)
		return domain.Location{}, fmt.Errorf("no match for %q: %w", address, apperr.ErrGeocodeFailed)
	}

	top := res[0]
	return domain.Location{
		Lat:     top.Geometry.Location.Lat,
		Lng:     top.Geometry.Location.Lng,
		Address: top.FormattedAddress,
	}, nil
}

func (g *GoogleGateway) fail(address string, err error) {
	if g.failures != nil {
		g.failures.Inc()
	}
	g.logger.Warn("geocode failed",
		logx.String("address", address),
		logx.Err(err),
	)
}
