// Package store persists disk configuration, keyword categories, and run
// history in a single SQLite database. All writes funnel through a small
// busy-retry helper so concurrent readers (status queries, the scheduler)
// never fail outright on short-lived lock contention.
package store
