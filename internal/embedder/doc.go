// Package embedder splices RSL license metadata into media containers.
//
// Each supported format gets the payload written through its native metadata
// extension point: JPEG receives an APP1 XMP segment, PNG an iTXt chunk, MP3
// a TXXX frame inside the ID3v2 tag, and PDF an incremental update carrying
// an XMP metadata stream. Files the embedder cannot rewrite safely fall back
// to a sidecar document when enabled. All embeds are idempotent: re-embedding
// replaces the previous payload rather than stacking a second one.
package embedder
