package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/cluster-tracker/internal/monitoring"
	"github.com/banshee-data/cluster-tracker/internal/timeutil"
)

var logf = monitoring.Scoped("network")

// PacketStats tracks datagram statistics with thread-safe operations.
type PacketStats struct {
	mu        sync.Mutex
	clock     timeutil.Clock
	packets   int64
	bytes     int64
	points    int64
	malformed int64
	dropped   int64
	lastReset time.Time
}

// StatsSnapshot is one reporting interval's worth of counters.
type StatsSnapshot struct {
	Packets   int64
	Bytes     int64
	Points    int64
	Malformed int64
	Dropped   int64
	Duration  time.Duration
}

// NewPacketStats creates a PacketStats using clock, or the real clock when nil.
func NewPacketStats(clock timeutil.Clock) *PacketStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PacketStats{clock: clock, lastReset: clock.Now()}
}

// AddPacket records a received datagram and the centroids decoded from it.
func (ps *PacketStats) AddPacket(bytes, points, malformed int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packets++
	ps.bytes += int64(bytes)
	ps.points += int64(points)
	ps.malformed += int64(malformed)
}

// AddDropped records a datagram that could not be forwarded or queued.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.dropped++
}

// GetAndReset returns the counters since the last reset and zeroes them.
func (ps *PacketStats) GetAndReset() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.clock.Now()
	s := StatsSnapshot{
		Packets:   ps.packets,
		Bytes:     ps.bytes,
		Points:    ps.points,
		Malformed: ps.malformed,
		Dropped:   ps.dropped,
		Duration:  now.Sub(ps.lastReset),
	}
	ps.packets, ps.bytes, ps.points, ps.malformed, ps.dropped = 0, 0, 0, 0, 0
	ps.lastReset = now
	return s
}

// Format renders a snapshot as a per-second rate line. It returns "" when
// there is nothing to report.
func (s StatsSnapshot) Format() string {
	if s.Packets == 0 && s.Dropped == 0 {
		return ""
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("centroid stats (/sec): %s, %.1f packets, %s points",
		humanize.Bytes(uint64(float64(s.Bytes)/secs)),
		float64(s.Packets)/secs,
		humanize.Comma(int64(float64(s.Points)/secs)))
	if s.Malformed > 0 {
		msg += fmt.Sprintf(", %s malformed", humanize.Comma(s.Malformed))
	}
	if s.Dropped > 0 {
		msg += fmt.Sprintf(", %s dropped", humanize.Comma(s.Dropped))
	}
	return msg
}

// LogStats logs and resets the counters.
func (ps *PacketStats) LogStats() {
	if msg := ps.GetAndReset().Format(); msg != "" {
		logf("%s", msg)
	}
}
