package ui

import (
	"sync"
	"time"
)

// speedInterval is the minimum spacing between throughput samples.
const speedInterval = 500 * time.Millisecond

// etaSmoothing weights the newest ETA estimate against the previous one.
const etaSmoothing = 0.3

// ProgressTracker turns queue snapshots into display statistics:
// completion ratio, throughput and a smoothed ETA.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu      sync.Mutex
	last    Snapshot
	start   time.Time
	lastETA time.Duration

	lastDone   int
	lastSample time.Time
	speed      SpeedStats
	samples    int
	chart      *Sparkline
}

// SpeedStats are throughput figures in documents per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Snapshot
	Done    int // completed + failed
	Ratio   float64
	ETA     time.Duration
	Elapsed time.Duration
	Speed   SpeedStats
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		start:      now,
		lastSample: now,
		chart:      NewSparkline(60),
	}
}

// Update records a snapshot.
func (p *ProgressTracker) Update(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateAt(s, time.Now())
}

func (p *ProgressTracker) updateAt(s Snapshot, now time.Time) {
	p.last = s
	done := s.Progress.Completed + s.Progress.Failed

	elapsed := now.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := done - p.lastDone; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.speed.Current = speed
		p.samples++
		if p.samples == 1 {
			p.speed.Avg = speed
		} else {
			p.speed.Avg = 0.2*speed + 0.8*p.speed.Avg
		}
		p.speed.Peak = max(p.speed.Peak, speed)
		p.chart.Add(speed)
	} else {
		p.speed.Current = 0
		p.chart.Add(0)
	}
	p.lastDone = done
	p.lastSample = now
}

// Stats returns current statistics.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := p.last.Progress.Completed + p.last.Progress.Failed
	stats := ProgressStats{
		Snapshot: p.last,
		Done:     done,
		Elapsed:  time.Since(p.start),
		Speed:    p.speed,
	}
	if total := p.last.Progress.Total; total > 0 {
		stats.Ratio = min(float64(done)/float64(total), 1)
	}
	stats.ETA = p.eta(stats.Ratio, stats.Elapsed)
	return stats
}

// eta extrapolates the remaining time from the elapsed time and ratio,
// smoothed against the previous estimate. Caller holds mu.
func (p *ProgressTracker) eta(ratio float64, elapsed time.Duration) time.Duration {
	if ratio <= 0 || ratio >= 1 {
		p.lastETA = 0
		return 0
	}
	raw := time.Duration(float64(elapsed)/ratio) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	p.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	return p.lastETA
}

// Chart renders the throughput sparkline.
func (p *ProgressTracker) Chart(width int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chart.Render(width)
}
