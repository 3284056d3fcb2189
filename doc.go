// Package swrcache is a keyed stale-while-revalidate store for remote
// resources. It is the single source of truth for the last known value of
// every resource key, shared by all consumers of a process.
//
// Guarantees:
//   - At most one fetch per key is in flight for ordinary reads; concurrent
//     subscribers share it and observe the same value or error.
//   - Every fetch and every optimistic/authoritative write takes a new
//     per-key generation. A fetch result is applied only if its generation
//     is still the newest, so a slow request never clobbers fresher data.
//   - A failed refresh keeps the previous value next to the new error.
//   - Invalidation marks an entry stale; the old value stays visible until
//     the replacement resolves.
//
// Write paths are limited to fetch completion, Invalidate, SetOptimistic
// and Reconcile.
//
// Snapshot tier (optional):
//
//	snap:<ns>:<key>  - framed (generation, fetchedAt, payload) in a Provider
//
// A snapshot is written with the generation observed before its fetch
// started and only if that generation is still current, and is trusted on
// hydration only while it still matches the GenStore:
//
//	obs := genstore.Snapshot(k) // before fetch
//	v   := fetch()
//	write(k, v, obs)            // iff current gen == obs
package swrcache
