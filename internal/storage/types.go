package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type EntryKind string

const (
	KindStatus EntryKind = "status"
	KindError  EntryKind = "error"
)

// JournalEntry records one notification attempt.
// Keep it compact and schema-stable.
type JournalEntry struct {
	At        time.Time `json:"at"`
	RunID     string    `json:"run_id"`
	Kind      EntryKind `json:"kind"`
	Homework  string    `json:"homework,omitempty"`
	Status    string    `json:"status,omitempty"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	Watermark int64     `json:"watermark"`
}
