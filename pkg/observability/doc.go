/*
Package observability turns bot lifecycle events into logs and Prometheus metrics.

Metrics.Hooks returns domain.LifecycleHooks for duzhibot.WithHooks; Logging returns hooks that
write the same events to a slog.Logger. Chain runs several hook sets in order.
*/
package observability
