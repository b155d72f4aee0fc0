package vkg

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"
)

// frameStatsWindow is the number of frames averaged by FrameStats.
const frameStatsWindow = 120

// FrameStats keeps a rolling window of CPU frame times and fence waits.
type FrameStats struct {
	start     time.Duration
	frameTime [frameStatsWindow]time.Duration
	fenceWait [frameStatsWindow]time.Duration
	n         int
	next      int
	total     uint64
}

// Begin marks the start of a frame.
func (s *FrameStats) Begin() {
	s.start = hrtime.Now()
}

// End closes the frame started by Begin. fenceWait is how long the frame
// blocked on its slot fence.
func (s *FrameStats) End(fenceWait time.Duration) {
	s.add(hrtime.Since(s.start), fenceWait)
}

func (s *FrameStats) add(frame, fenceWait time.Duration) {
	s.frameTime[s.next] = frame
	s.fenceWait[s.next] = fenceWait
	s.next = (s.next + 1) % frameStatsWindow
	if s.n < frameStatsWindow {
		s.n++
	}
	s.total++
}

func average(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

// FrameTime is the average CPU time per frame over the window.
func (s *FrameStats) FrameTime() time.Duration {
	return average(s.frameTime[:s.n])
}

// FenceWait is the average time spent waiting on slot fences over the window.
func (s *FrameStats) FenceWait() time.Duration {
	return average(s.fenceWait[:s.n])
}

// FPS derived from FrameTime, zero before the first frame.
func (s *FrameStats) FPS() float64 {
	ft := s.FrameTime()
	if ft <= 0 {
		return 0
	}
	return float64(time.Second) / float64(ft)
}

// Frames is the number of frames recorded since creation.
func (s *FrameStats) Frames() uint64 {
	return s.total
}

// Wrapped reports whether the last End completed a full window.
func (s *FrameStats) Wrapped() bool {
	return s.next == 0 && s.n == frameStatsWindow
}

func (s *FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("frameTime", s.FrameTime()),
		slog.Duration("fenceWait", s.FenceWait()),
		slog.Float64("fps", s.FPS()),
		slog.Uint64("frames", s.total),
	)
}
