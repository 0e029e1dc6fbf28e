// Package rsl models the RSL license payload embedded into media files.
//
// A License has two stable renderings: canonical compact JSON (carried in
// ID3 frames and anywhere a text payload fits) and an RSL XML document
// (carried in XMP packets for JPEG, PNG, and PDF, and in sidecar files).
// Canonical() normalizes usage-class ordering and timestamps so the two
// renderings of equal licenses are byte-stable; Digest() hashes the JSON
// form for verification.
//
// Usage classes are a closed enum; parse functions reject unknown classes
// rather than carrying them through.
package rsl
