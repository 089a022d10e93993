package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as lazy singletons.
// Dependency order:
//  1. Config (config path)
//  2. Logger (Config)
//  3. Telemetry (Config, Logger)
//  4. Metrics (Config)
//  5. Sessions (Config, Logger)
//  6. HealthTracker (Config, Logger)
//  7. Checker (Config, HealthTracker, Logger)
//  8. Upstream (Config, Sessions, HealthTracker, Logger)
//  9. Stats (Config, Upstream, Metrics, Logger)
//  10. Concurrency (Config)
//  11. Handler (Stats, HealthTracker, Metrics, Concurrency, Logger)
//  12. Server (Handler, Config)
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewTelemetry)
	do.Provide(i, NewMetrics)
	do.Provide(i, NewSessions)
	do.Provide(i, NewHealthTracker)
	do.Provide(i, NewChecker)
	do.Provide(i, NewUpstream)
	do.Provide(i, NewStats)
	do.Provide(i, NewConcurrencyService)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
