package utils

import (
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker renders a byte-count progress bar for one transfer.
// In quiet mode every method is a no-op so callers never branch.
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
	current   int64
	mutex     sync.Mutex
}

// TransferSummary contains final transfer statistics
type TransferSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
}

// NewProgressTracker creates a progress tracker for a transfer of the given
// size. A label names the file being transferred.
func NewProgressTracker(label string, total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:     quiet,
		startTime: time.Now(),
		total:     total,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		bar := pb.ProgressBarTemplate(tmpl).Start64(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", label+": ")
		tracker.bar = bar
	}

	return tracker
}

// Add advances the bar by n bytes
func (p *ProgressTracker) Add(n int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current += n
	if p.bar != nil {
		p.bar.SetCurrent(p.current)
	}
}

// Reader wraps r so that every read advances the bar
func (p *ProgressTracker) Reader(r io.Reader) io.Reader {
	return &progressReader{inner: r, tracker: p}
}

// Finish completes the bar and returns the transfer summary
func (p *ProgressTracker) Finish() *TransferSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	totalTime := time.Since(p.startTime)

	if p.bar != nil {
		p.bar.Finish()
	}

	avgSpeed := 0.0
	if totalTime.Seconds() > 0 {
		avgSpeed = float64(p.current) / totalTime.Seconds()
	}

	return &TransferSummary{
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: avgSpeed,
	}
}

type progressReader struct {
	inner   io.Reader
	tracker *ProgressTracker
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.tracker.Add(int64(n))
	}
	return n, err
}
