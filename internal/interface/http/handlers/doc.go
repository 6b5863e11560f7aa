// Package handlers contains the gin middleware, the response envelope and
// health checks shared by the HTTP API.
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddCheck("redis", handlers.NewPingCheck(redisClient))
//
//	status := checker.Check(ctx)
//
// # Middleware
//
// Middleware is installed in this order: recovery, request id, access log,
// security headers, CORS and the optional rate limiter. Protected groups add
// BearerAuth; administrative routes add AdminKeyAuth.
//
// # Errors
//
// Handlers report failures with RespondDomainError, which maps domain error
// kinds to HTTP statuses via ErrorStatus.
package handlers
