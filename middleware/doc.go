// Package middleware provides composable middleware for seat-check
// attempts.
//
// A [Middleware] wraps the function that performs one attempt against
// the reservation site. Middleware are composed with [Chain] and applied
// right-to-left: the first middleware in the slice is the outermost
// wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs the route, attempt count, duration, and outcome
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the attempt context after a configured duration
//   - [Tracing] — wraps the attempt in an OpenTelemetry span
//   - [Metrics] — records per-attempt duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
