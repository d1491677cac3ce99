// Package sqlite implements the calendar storage contracts on SQLite.
//
// Every mutation runs as one transaction: the conflict scan, the live field
// write, the version append, and its change rows commit together or not at
// all. Timestamps are stored as UTC Unix milliseconds; snapshots are stored
// as opaque JSON text.
package sqlite
