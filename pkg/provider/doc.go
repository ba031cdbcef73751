// Package provider hosts the two coordinators (EPPO, EU) that own a
// provider's lifecycle: they drive Initialise/Fetch/Rebuild/Query,
// schedule the weekly refresh, serialise local operations against the
// cross-node lock, and perform the atomic Swap & GC of the live Store.
//
// EPPOCoordinator and EUCoordinator are concrete types rather than one
// generic Coordinator[S Store]: their Initialise/Rebuild options differ
// (an EPPO type allow-list vs. nothing for EU) enough that a shared
// generic type would mostly be plumbing two near-identical structs
// through one type parameter. The pieces that really are identical,
// weekly scheduling, lock acquisition, GC file enumeration, are shared
// free functions instead.
package provider
