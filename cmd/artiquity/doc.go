// Package main hosts the Artiquity CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the artiquityd API: account management, wizard project
// steps, license inspection, and daemon status. License embedding and
// verification also work directly on local files so the CLI stays useful
// without a running daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
