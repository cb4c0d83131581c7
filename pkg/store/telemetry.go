package store

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type storeMetrics struct {
	fetches              metric.Int64Counter
	cacheHits            metric.Int64Counter
	verificationFailures metric.Int64Counter
}

func newStoreMetrics() (*storeMetrics, error) {
	meter := otel.Meter("gantry/store")

	fetches, err := meter.Int64Counter("gantry.store.fetches",
		metric.WithDescription("Provider fetches performed"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("gantry.store.cache_hits",
		metric.WithDescription("Gets served from the cache without a fetch"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("gantry.store.verification_failures",
		metric.WithDescription("Fetched artifacts rejected by verification"))
	if err != nil {
		return nil, err
	}

	return &storeMetrics{
		fetches:              fetches,
		cacheHits:            cacheHits,
		verificationFailures: failures,
	}, nil
}
