package domain

import "time"

// Record is implemented by every persisted entity. Embedding Base satisfies it.
type Record interface {
	RecordID() uint64
}

// Clock supplies creation timestamps. Stores default to UTC wall-clock time.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time { return time.Now().UTC() }
