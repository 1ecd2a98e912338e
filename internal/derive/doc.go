// Package derive builds application artifacts (printers, comparers, codecs,
// schema generators) from the structure of Go types.
//
// # Overview
//
// An application implements Visitor[A], one method per shape.Kind. A Cache[A]
// owns the derivation for that application: it asks the shape.Provider for
// the shape of a type, dispatches to the visitor method for its kind, and
// memoizes the result. Visitor methods request artifacts for child types
// through the Builder they receive, so every type is visited at most once per
// cache.
//
// # Cycles
//
// A type that refers back to itself (directly, or through a chain of
// properties and elements) is requested again while its own build is still
// in progress. The cache resolves this in one of two ways:
//
//   - If the visitor implements Delayer[A], the cache allocates a slot in its
//     arena and asks the visitor for a placeholder artifact that forwards to
//     that slot. The same placeholder is handed to every cyclic request for
//     the type. When the in-progress build completes, the slot is filled, so
//     forwarding calls made at any later time observe the final artifact.
//   - Otherwise the request reports "no value" (ok == false) and the visitor
//     must treat the edge as absent.
//
// # Ownership and concurrency
//
// Completed artifacts may be looked up and used from any goroutine. Building
// is single threaded: a root-level Get that finds the cache already building
// fails immediately with ErrConcurrentBuild instead of waiting. A failed root
// call discards every entry it created, so no artifact can be left holding
// a placeholder that will never be filled.
package derive
