// Package storage holds backend configuration and the export archive
// abstraction for Nurture.
//
// # Backends
//
//   - PostgreSQL (pkg/storage/postgres): the raw collections analytics reads,
//     through a primary plus optional read replicas
//   - Redis (pkg/storage/postgres): published snapshots shared between the API
//     and the nightly aggregator
//   - S3 or the local filesystem: archived CSV exports
//
// # Archive Layout
//
// Exports are stored under a date partitioned key:
//
//	exports/2026/03/15/analytics-30d-2026-03-15.csv
//
// Use ArchiveKey to build keys so S3 and FileSystemArchive agree on layout.
//
// # Configuration
//
// Config is populated from environment variables by pkg/config. DefaultConfig
// returns pool sizes and timeouts suitable for a single API instance.
package storage
