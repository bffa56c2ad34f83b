// Package snapshot persists the current state of a kmeanslab session.
//
// A snapshot is encoded into a self-describing envelope:
//
//	magic "KMSN" | version u8 | compression u8 | codec-name-len u8 | codec-name
//	| uncompressed-size u32 | compressed-size u32 | crc32c u32 | payload
//
// All integers are little endian. A compressed size of 0 means the payload is
// stored uncompressed, which Encode falls back to when compression does not
// pay off. The checksum covers the uncompressed payload.
//
// Repository stores envelopes in a blobstore.Store under a name chosen by
// the caller. Only the current state is kept; saving under an existing name
// replaces it.
package snapshot
