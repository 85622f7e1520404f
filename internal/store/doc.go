// Package store provides persistent storage for the DBP server using SQLite.
//
// # Data Models
//
//   - RequestLog: one row per handled request (who, what, outcome, duration)
//   - Recommendation: a suggested documentation change and its review status
//
// SQLiteStore implements Store. The schema is created on open and migrations
// are applied idempotently, so an existing database file can be reused across
// upgrades.
//
// # Timestamps
//
// Times are stored as fixed-width UTC text so lexical order matches
// chronological order.
package store
