// Package storage keeps an optional append-only journal of notification
// attempts.
//
// Two drivers exist:
//   - file: JSON Lines at the configured path
//   - sqlite: a single table in a SQLite database file
//
// The journal is write-only from the bot's point of view. It is an audit
// trail for operators and is never replayed into the poll state.
package storage
