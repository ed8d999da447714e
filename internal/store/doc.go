// Package store provides a SQLite-backed local ledger implementing
// ledger.Client and ledger.BinaryStore.
//
// It exists so the whole publish workflow can run offline: the CLI drives
// real flows against it, and integration-style tests use it in place of a
// network ledger. Topics are append-only; messages are ordered by a
// per-topic sequence number starting at 1; topic ids follow the "0.0.N"
// shape of the real ledger with N allocated from a persistent counter.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
