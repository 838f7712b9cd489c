package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/timeutil"
)

// FramePusher accepts decoded frames. *ingest.FrameQueue implements it.
type FramePusher interface {
	Push(f ingest.Frame) (seq uint64, evicted bool)
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Queue       FramePusher
	Stats       *PacketStats
	Clock       timeutil.Clock
}

// UDPListener receives centroid datagrams, one frame per datagram, and
// pushes the decoded frames onto a queue.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	queue       FramePusher
	stats       *PacketStats
	clock       timeutil.Clock

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPListener creates a new UDP listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	stats := config.Stats
	if stats == nil {
		stats = NewPacketStats(clock)
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		queue:       config.Queue,
		stats:       stats,
		clock:       clock,
	}
}

// Stats returns the listener's packet statistics.
func (l *UDPListener) Stats() *PacketStats { return l.stats }

// LocalAddr returns the bound address once Start has opened the socket.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start listens for datagrams until ctx is cancelled. It returns
// ctx.Err() on cancellation.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			logf("failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	logf("UDP listener started on %s", conn.LocalAddr())

	go l.statsLoop(ctx)

	buffer := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			logf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is noticed between datagrams.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logf("UDP read error: %v", err)
			continue
		}
		l.handlePacket(buffer[:n], from)
	}
}

func (l *UDPListener) handlePacket(packet []byte, from net.Addr) {
	points, malformed := DecodeCentroids(packet)
	l.stats.AddPacket(len(packet), len(points), malformed)
	if malformed > 0 {
		logf("datagram from %v: %d trailing bytes ignored", from, len(packet)%centroidSize)
	}
	if l.queue == nil {
		return
	}
	if _, evicted := l.queue.Push(ingest.Frame{
		Received:     l.clock.Now(),
		Observations: points,
		Malformed:    malformed,
	}); evicted {
		l.stats.AddDropped()
	}
}

func (l *UDPListener) statsLoop(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.stats.LogStats()
		}
	}
}

// Close closes the listening socket.
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
