package persist

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Destination is a snapshot target (S3, Postgres, a local file).
type Destination interface {
	// Write stores one JSONL snapshot.
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports a Source to destinations periodically.
type Scheduler struct {
	src          Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler exporting src every interval.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		src:          src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start exports once immediately, then on every tick, until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler, waits for a running export, then writes one
// last snapshot so a clean shutdown loses nothing.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.Flush(context.Background())
}

// Flush exports once, now. It returns the number of destinations that
// accepted the snapshot.
func (s *Scheduler) Flush(ctx context.Context) int {
	var buf bytes.Buffer
	h, err := ExportJSONL(s.src, &buf)
	if err != nil {
		s.logger.Error("snapshot export failed", "err", err)
		return 0
	}
	data := buf.Bytes()

	ok := 0
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("snapshot destination write failed", "destination", i, "err", err)
			continue
		}
		ok++
	}
	s.logger.Debug("snapshot written", "entries", h.EntryCount, "destinations", ok, "bytes", len(data))
	return ok
}

func (s *Scheduler) run(ctx context.Context) {
	s.Flush(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Reader is a destination snapshots can be read back from.
type Reader interface {
	Read(ctx context.Context) ([]byte, error)
}
