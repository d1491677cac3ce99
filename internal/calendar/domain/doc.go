// Package domain holds the calendar event model and the versioning
// primitives built on it: field snapshots, snapshot diffs, recurrence
// expansion, and interval conflict detection. Everything here is pure;
// persistence and transaction boundaries live in the storage packages.
package domain
