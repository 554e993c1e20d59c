package internal

import (
	"sjsage522/catalogworker/helpers"
	"sjsage522/catalogworker/internal/metrics"
	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/services/cache"
	"sjsage522/catalogworker/services/publisher"
	"sjsage522/catalogworker/services/store"
)

// Dependencies holds all service dependencies of a worker process.
// Store and Publisher are nil when persistence or the change feed is off.
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.Store
	Metrics   *metrics.Metrics
	Journal   helpers.LoggerInterface
}

// Cleanup closes the store and publisher connections
func (d *Dependencies) Cleanup() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			logger.Warn("failed to close store: %v", err)
		}
	}
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			logger.Warn("failed to close publisher: %v", err)
		}
	}
}
