// Package store records scenario runs in SQLite.
//
// Each `pagecheck run --db` writes one row to runs and one row per
// scenario to scenario_results, in a single transaction. The history
// command reads them back.
//
// Run IDs are UUIDv7, so they sort by creation time. Listing queries order
// by started_at, then id, so results are stable when two runs share a
// timestamp.
package store
