// Package media classifies file containers by their magic bytes.
//
// Classification never reads more than SniffLen bytes and never fails;
// unrecognized content maps to FormatUnknown and the embedder decides how
// to handle it (typically a sidecar file).
package media
