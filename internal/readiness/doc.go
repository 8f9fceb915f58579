// Package readiness decides when the dependency services are usable.
//
// Two Waiters are provided. FixedWait sleeps for a grace period and is kept
// for parity with the historical shell bootstrap. Poller is the default: it
// repeatedly runs a set of Probes, all of them concurrently within one
// attempt, until every probe passes or a bounded timeout expires with a
// *model.TimeoutError.
//
// Probes check the Docker container state of a compose service
// (ContainerProbe), open a PostgreSQL connection (PostgresProbe) and PING
// Redis (RedisProbe). Guard wraps any probe in a circuit breaker so a
// dependency that keeps failing is short-circuited between attempts.
package readiness
