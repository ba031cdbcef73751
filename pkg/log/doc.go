/*
Package log provides structured logging for refdata using zerolog.

It wraps zerolog to give every component (coordinator, fetcher, builder,
store, lock, HTTP layer) a JSON-structured logger with a stable set of
context fields, so an operator can filter a week's worth of ingest logs by
provider and operation without parsing free text.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	providerLog := log.WithProvider("eppo")
	providerLog.Info().Msg("coordinator ready")

	opLog := log.WithOperation("build")
	opLog.Error().Err(err).Str("provider", "eu").Msg("build failed")

Component, provider, and operation loggers compose via zerolog's own
With() chaining:

	log.WithComponent("store").With().Str("provider", "eppo").Logger().
		Debug().Str("eppocode", "LYPES").Msg("lookup")

# Levels

Info is the production default. Debug is reserved for request tracing
during incident investigation. Warn marks recoverable degradation (a
stale lock reclaimed, a peer holding a lock). Error marks an operation
that left the system in a degraded but serviceable state (no Store live,
or a Build superseded by failure). Fatal is startup-only, reserved for
invalid startup configuration: a missing required environment variable
or an EPPO options file that cannot be read or parsed.
*/
package log
