/*
Package observability provides telemetry sinks and state aggregation for blueprint engines.

Sinks implement ports.TelemetrySink and receive the persistence scheduler's job
events: LogSink writes them through slog, PrometheusSink turns them into counters
and histograms, and Multi fans one event out to several sinks.

Aggregator merges the EditorState streams of several engines into one channel,
which is what the session manager exposes to dashboards.
*/
package observability
