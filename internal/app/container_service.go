package app

import (
	"strings"

	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/gateway/geocode"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/ports/dispatchtx"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/driver"
	"service-dispatch/internal/service/fleet"
	"service-dispatch/internal/service/order"
	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/service/wallet"
)

// devAddresses lets local setups place orders by address without a Maps key.
var devAddresses = map[string]domain.Location{
	"MG Road, Bengaluru":     {Lat: 12.9756, Lng: 77.6050},
	"Koramangala, Bengaluru": {Lat: 12.9352, Lng: 77.6245},
	"Indiranagar, Bengaluru": {Lat: 12.9784, Lng: 77.6408},
	"Whitefield, Bengaluru":  {Lat: 12.9698, Lng: 77.7500},
}

func newGeocoder(cfg *config.Config, logger logx.Logger, m *metrics.Set) (order.Geocoder, error) {
	if strings.TrimSpace(cfg.Geocode.APIKey) == "" {
		logger.Info("geocoding from the static address table")
		return geocode.NewStatic(devAddresses), nil
	}
	gw, err := geocode.NewGoogleGateway(cfg.Geocode.APIKey, cfg.Geocode.Region, logger, m.GeocodeFailures)
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		newGeocoder,
		func(repo dispatchtx.Runner, pub events.Publisher, cfg *config.Config, logger logx.Logger) *fleet.Service {
			return fleet.NewService(repo, pub, cfg.Dispatch.OperationTimeout, logger)
		},
		func(repo dispatchtx.Runner, pub events.Publisher, cfg *config.Config, logger logx.Logger) *driver.Service {
			return driver.NewService(repo, pub, cfg.Dispatch.OperationTimeout, logger)
		},
		func(repo dispatchtx.Runner, pub events.Publisher, geo order.Geocoder, cfg *config.Config, logger logx.Logger) *order.Service {
			return order.NewService(repo, pub, geo, cfg.Dispatch.OperationTimeout, logger)
		},
		func(repo dispatchtx.Runner, pub events.Publisher, cfg *config.Config, logger logx.Logger, m *metrics.Set) *wallet.Service {
			return wallet.NewService(repo, pub, cfg.Dispatch.OperationTimeout, logger, m.WalletCredits, m.WalletDebits)
		},
		func(repo dispatchtx.Runner, pub events.Publisher, cfg *config.Config, logger logx.Logger,
			m *metrics.Set, w *wallet.Service) *dispatch.Service {
			return dispatch.NewService(repo, pub, dispatch.Config{
				OfferTTL:         cfg.Dispatch.OfferTTL,
				OperationTimeout: cfg.Dispatch.OperationTimeout,
			}, logger, m.AssignmentOutcomes, w)
		},
		orders.NewProcessor,
	)
}
