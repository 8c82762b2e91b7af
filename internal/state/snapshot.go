package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"main/internal/schema"
)

// Snapshot captures session accounting at a point in time. It bounds how
// much journal the next start has to replay.
type Snapshot struct {
	Timestamp   int64           `json:"timestamp"`
	LastSeq     uint64          `json:"lastSeq"`
	LastEventTs int64           `json:"lastEventTs"`
	Position    schema.Quantity `json:"position"`
	Vwap        schema.Price    `json:"vwap"`
	Realized    schema.Notional `json:"realized"`
}

// Snapshot builds a snapshot of the tracker with event metadata.
func (t *Tracker) Snapshot(lastSeq uint64, lastEventTs int64) Snapshot {
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Position:    t.position,
		Vwap:        t.vwap,
		Realized:    t.realized,
	}
}

// ApplySnapshot replaces the tracker state with the snapshot contents.
func (t *Tracker) ApplySnapshot(snap Snapshot) {
	t.position = snap.Position
	t.vwap = snap.Vwap
	t.realized = snap.Realized
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
