// Package storage persists update schedules and the operator audit log.
//
// Drivers:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory": process memory only; used when storage is not configured
package storage
