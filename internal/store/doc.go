// Package store keeps cardcheck's durable state in SQLite:
//
//   - Sources and sites: the line index written by preprocessing. Each site
//     records the status word its assertion throws, so a status seen on the
//     wire decodes back to file:line.
//   - Runs and exchanges: transcripts of scenario runs, one row per command.
//
// Exchanges are ordered by the card's logical sequence number, never by wall
// time. Source paths are stored slash-separated and NFC-normalized, so the
// same file indexes under one key on every platform.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
