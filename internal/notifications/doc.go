// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event toggles let operators silence campaign, license, watch,
// or error messages independently.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
