/*
Package log provides structured logging for the memory engine using zerolog.

The log package wraps zerolog to provide JSON- or console-formatted
logging tagged with the service name, a configurable level, and
scope/operation-aware child loggers. All logs include timestamps and
support filtering by severity for local debugging.

# Usage

Initializing the logger, once, from the CLI entrypoint:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Plain logging goes through the global Logger directly:

	log.Logger.Warn().Err(err).Msg("config reload rejected, keeping previous config")

Context loggers tag every line with the scope (and, for WithOp, the
operation) a component is acting on, rather than repeating `.Str(...)`
at every call site:

	log.WithOp(string(item.Scope), "upsert").Info().Str("id", item.ID).Msg("item written")

# Design

A single package-level Logger is initialized once by the CLI entrypoint
before any subcommand runs, following the same cobra.OnInitialize pattern
as the teacher repository's pkg/log. Nearly everything in this engine is
partitioned by scope (global/local/committed), so WithScope/WithOp are
the only child-logger constructors needed — there is no per-node or
per-service context to carry the way a clustered system would have.

Never log secret material: item text/code only ever reaches this package
after passing through pkg/redact.
*/
package log
