/*
Package log provides structured logging for the discovery core using
zerolog: a global logger initialized once via Init, and component- and
entity-scoped child loggers (WithComponent, WithBPN, WithConnector,
WithAssetID) so every line carries enough context to trace a single BPN's
discovery path across caches, harvester and negotiation calls.

Console output with a timestamp is the default; JSON output is selected
with Config.JSONOutput (the CLI's --log-json flag). Neither mode allocates when a level is
disabled.
*/
package log
