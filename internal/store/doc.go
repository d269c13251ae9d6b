// Package store provides SQLite-backed chain state for the sandbox host.
//
// The store holds everything a query execution can observe through the host:
//   - chain_facts: the single row of chain identity, height, time and chain balance
//   - balances: per-owner balances, listed in first-credit order
//   - blobs: content-addressed data blobs
//   - kv: the application's key-value storage
//   - applications: registered applications and their parameters
//   - operations: the append-only queue of scheduled operations
//   - host_calls: the log of primitive invocations made by executions
//
// # Ordering
//
// Every listing is ordered deterministically. Logs use a logical seq
// assigned by the caller, never wall-clock time; key scans use binary key
// order.
//
// # Schema
//
// The schema is versioned through PRAGMA user_version. Open applies the
// missing steps of the migration history in order, one transaction each:
// v1 chain state, v2 operation queue, v3 host-call log. A database written by
// a newer version is refused.
package store
