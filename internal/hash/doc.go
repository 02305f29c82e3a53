// Package hash provides the CRC32-Castagnoli checksum used to protect
// protocol frames.
//
// One-shot:
//
//	sum := hash.CRC32C(payload)
//
// Streaming over disjoint regions of a frame:
//
//	h := hash.NewCRC32C()
//	h.Write(header)
//	h.Write(body)
//	sum := h.Sum32()
package hash
