// Package resource governs what a search may consume.
//
//   - Memory: a per-level byte budget that turns into per-bucket capacities
//     (BucketCapacity), pushed down the tree as capacity overrides.
//   - Concurrency: a weighted semaphore bounding how many workers extend
//     graphs at once when the whole tree runs in one process.
//   - IO: a token bucket shared by every network link of a node.
//
// All methods handle a nil Controller gracefully and become no-ops.
package resource
