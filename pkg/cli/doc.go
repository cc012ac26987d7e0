// Package cli provides the Nurture command-line interface for the analytics API.
//
// # Overview
//
// This package implements the `nurture` CLI used by operators to inspect,
// refresh and export analytics snapshots from a running server. Every command
// except schema talks to the HTTP API; the server URL defaults to
// NURTURE_SERVER or http://localhost:8080.
//
// # Commands
//
// windows: List the supported windows
//
//	nurture windows
//
// snapshot: Print a summary (or the raw JSON) of a window's snapshot
//
//	nurture snapshot --window 7d --refresh
//	nurture snapshot --window all --json
//
// refresh: Force a recomputation
//
//	nurture refresh --window 90d
//
// export: Save the CSV export under the server-provided file name
//
//	nurture export --window 30d --dir ./reports
//
// schema: Print the PostgreSQL schema the reader expects
//
//	nurture schema | psql "$NURTURE_POSTGRES_URL"
package cli
