// Package storage is the content store: titles grouped by category that the
// broadcast job samples from, plus an append-only delivery audit log.
//
// Drivers:
//   - "sqlite": a SQLite file through the pure-Go modernc.org/sqlite driver
//   - "file": a JSON snapshot of entries plus an audit JSON Lines file
//   - "none": every call returns ErrDisabled
package storage
