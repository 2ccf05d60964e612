package config

import "time"

const (
	defaultPort    = 8080
	defaultStorage = StorageMemory
)

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch",
}

var defaultDispatch = Dispatch{
	OfferTTL:         2 * time.Minute,
	ExpiryInterval:   10 * time.Second,
	OperationTimeout: 3 * time.Second,
}

var defaultEvents = Events{
	MaxAttempts: 5,
	QueueSize:   1024,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5,
	Burst:      10,
	AdminBurst: 50,
	TTL:        10 * time.Minute,
	MaxBuckets: 100_000,
}

// DefaultPort returns the default HTTP port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultDispatch returns the default coordinator settings.
func DefaultDispatch() Dispatch { return defaultDispatch }

// DefaultEvents returns the default event bus settings.
func DefaultEvents() Events { return defaultEvents }

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }
