package gpio

import (
	"fmt"
	"time"

	"github.com/sweeney/owmaster/internal/model"
)

// Source turns a set of GPIO lines into scan batches. Full scans cover
// every line; alarm scans cover only lines marked Alarm.
type Source struct {
	lines   []Line
	readers []LineReader
	now     func() time.Time
}

// NewSource pairs lines with their readers. The two slices must be the
// same length and in the same order.
func NewSource(lines []Line, readers []LineReader, now func() time.Time) (*Source, error) {
	if len(lines) != len(readers) {
		return nil, fmt.Errorf("%d lines but %d readers", len(lines), len(readers))
	}
	if now == nil {
		now = time.Now
	}
	return &Source{lines: lines, readers: readers, now: now}, nil
}

// Scan reads the lines selected by mode and returns one sample per line.
// A failed line read aborts the batch.
func (s *Source) Scan(mode model.ScanMode) (model.Batch, error) {
	ts := s.now()
	var batch model.Batch
	for i, line := range s.lines {
		if mode == model.ScanAlarm && !line.Alarm {
			continue
		}
		raw, err := s.readers[i].Value()
		if err != nil {
			return model.Batch{}, fmt.Errorf("read pin %d: %w", line.Pin, err)
		}
		batch.Samples = append(batch.Samples, model.Sample{
			Device:    line.Device,
			Channel:   line.Channel,
			Value:     float64(raw),
			Timestamp: ts,
		})
	}
	return batch, nil
}
