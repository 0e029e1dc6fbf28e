// Package config loads, normalizes, and validates Artiquity configuration.
//
// Configuration lives in a TOML file resolved from an explicit path flag,
// ~/.config/artiquity/config.toml, or ./artiquity.toml, in that order.
// Secrets may additionally be supplied through the environment (see
// envOverrides); environment values always win over the file so deployments
// can keep API keys out of dotfiles.
//
// Load returns a fully normalized config: paths expanded to absolute form,
// empty fields backfilled from defaults, and cross-field constraints checked.
// Other packages should never read TOML or environment variables directly.
package config
