// Package metrics keeps per-frame timing for the render loop and logs a summary at a fixed
// interval.
package metrics

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"
)

// DefaultInterval is how often a summary is reported.
const DefaultInterval = time.Second

// Report summarizes the frames rendered during one interval.
type Report struct {
	Frames  int
	Slowest time.Duration
	Fastest time.Duration
	Average time.Duration
	// EndToStart is the time between the end of the previous frame and the start of the
	// last one, that is the time spent outside the frame body.
	EndToStart time.Duration
	// StartToStart is the time between the starts of the last two frames.
	StartToStart time.Duration
	Interval     time.Duration
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frames", r.Frames),
		slog.Duration("slowest", r.Slowest),
		slog.Duration("fastest", r.Fastest),
		slog.Duration("average", r.Average),
		slog.Duration("end_to_start", r.EndToStart),
		slog.Duration("start_to_start", r.StartToStart),
	)
}

// Frames accumulates frame timings. It is not safe for concurrent use; the render loop
// owns it.
type Frames struct {
	log      *slog.Logger
	interval time.Duration
	now      func() time.Duration

	cycleStart time.Duration
	frameStart time.Duration
	frameEnd   time.Duration

	slowest    time.Duration
	fastest    time.Duration
	total      time.Duration
	count      int
	endToStart time.Duration
	startDelta time.Duration

	last Report
}

// New returns a Frames reporting to log every interval. A zero interval uses DefaultInterval.
func New(log *slog.Logger, interval time.Duration) *Frames {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	f := &Frames{log: log, interval: interval, now: hrtime.Now}
	f.reset(f.now())
	return f
}

func (f *Frames) reset(now time.Duration) {
	f.cycleStart = now
	f.frameStart = now
	f.frameEnd = now
	f.slowest = 0
	f.fastest = 30 * time.Second
	f.total = 0
	f.count = 0
}

// StartFrame marks the beginning of a frame.
func (f *Frames) StartFrame() {
	now := f.now()
	f.endToStart = now - f.frameEnd
	f.startDelta = now - f.frameStart
	f.frameStart = now
}

// EndFrame marks the end of the frame started by the last StartFrame. When the interval
// elapsed it logs a summary, returns it and starts a new interval.
func (f *Frames) EndFrame() (Report, bool) {
	now := f.now()
	elapsed := now - f.frameStart
	f.count++
	f.total += elapsed
	if elapsed > f.slowest {
		f.slowest = elapsed
	}
	if elapsed < f.fastest {
		f.fastest = elapsed
	}
	f.frameEnd = now

	if now-f.cycleStart <= f.interval {
		return Report{}, false
	}
	r := Report{
		Frames:       f.count,
		Slowest:      f.slowest,
		Fastest:      f.fastest,
		Average:      f.total / time.Duration(f.count),
		EndToStart:   f.endToStart,
		StartToStart: f.startDelta,
		Interval:     f.interval,
	}
	f.log.Info("frame timing", "report", r)
	f.last = r
	f.reset(now)
	return r, true
}

// Last returns the most recent report.
func (f *Frames) Last() Report {
	return f.last
}
