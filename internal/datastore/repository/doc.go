// Package repository provides the only code path that reads or writes
// catalog rows. One repository per entity, each exposing small,
// single-purpose operations.
//
// # Sessions
//
// Bulk operations take a caller-supplied *datastore.Session so the
// indexer can group thousands of rows into one transaction; commit and
// rollback stay with the caller. Single-row operations manage their own
// session internally. Either way, no operation leaves a partially
// applied write visible.
//
// # Not-found semantics
//
// Point lookups (GetByPath, GetByChecksum) report a missing row as an
// explicit empty result: a nil pointer or empty slice with a nil error.
// Sentinel errors are reserved for operations where the row was
// required, such as DeleteByID.
//
// # Determinism
//
// Every listing operation orders by (created_at, id), so repeated calls
// against an unchanged catalog return identical row sequences.
package repository
