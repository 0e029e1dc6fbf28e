// Package logging builds slog loggers for the daemon and CLI.
//
// Two formats are supported: "console" renders compact colorized lines for
// interactive use (color only when stdout is a terminal), "json" emits one
// JSON object per line for ingestion. NewFromConfig tees output to stdout and
// the daemon log file under the configured log directory.
//
// Components tag their loggers via WithComponent; the console handler lifts
// the component attribute into the line prefix.
package logging
