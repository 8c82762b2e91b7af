package state

import (
	"context"
	"fmt"

	"main/internal/codec"
	"main/internal/recorder"
	"main/internal/schema"
)

// RecoverConfig controls snapshot plus journal recovery.
type RecoverConfig struct {
	JournalDir      string
	SnapshotPath    string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

// RecoverResult carries the rebuilt accounting and replay metadata.
type RecoverResult struct {
	Tracker     *Tracker
	LastSeq     uint64
	LastEventTs int64
}

// Recover loads the latest snapshot, if any, and replays the journal tail
// to rebuild position, entry price and realized PnL.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.JournalDir == "" {
		return RecoverResult{}, fmt.Errorf("journal dir is empty")
	}
	tracker := NewTracker()
	var lastSeq uint64
	var lastEventTs int64

	if cfg.SnapshotPath != "" {
		snap, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, err
		}
		tracker.ApplySnapshot(snap)
		lastSeq = snap.LastSeq
		lastEventTs = snap.LastEventTs
	}

	replay, err := recorder.NewReplay(recorder.ReplayConfig{
		Dir:             cfg.JournalDir,
		FilePrefix:      cfg.FilePrefix,
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})
	if err != nil {
		return RecoverResult{}, err
	}

	err = replay.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		if lastSeq > 0 && header.Seq <= lastSeq {
			return nil
		}
		if lastSeq == 0 && lastEventTs > 0 && header.TsEvent <= lastEventTs {
			return nil
		}
		if header.Seq > lastSeq {
			lastSeq = header.Seq
		}
		if header.TsEvent > lastEventTs {
			lastEventTs = header.TsEvent
		}
		if header.Type != schema.EventFill {
			return nil
		}
		fill, ok := codec.DecodeFill(payload)
		if !ok {
			return fmt.Errorf("decode fill at seq %d", header.Seq)
		}
		tracker.ApplyFill(fill)
		return nil
	})
	if err != nil {
		return RecoverResult{}, err
	}

	return RecoverResult{
		Tracker:     tracker,
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
	}, nil
}
