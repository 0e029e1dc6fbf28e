// Package server coordinates the long-running Artiquity process and its HTTP
// JSON API.
//
// It wires configuration, storage, the wizard generation services, licensing,
// and optional authentication into a single lifecycle with flock-based locking
// to prevent multiple instances. Wizard endpoints enforce step ordering:
// generating a dashboard without a capsule, or a campaign without a dashboard,
// returns 409 rather than running out of sequence.
//
// Keep orchestration logic here: the generation and licensing semantics live
// in their respective packages while the server focuses on routing, auth, and
// lifecycle.
package server
