package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

// IdentityForwarder publishes each frame's track identities as a UDP
// datagram. Sends happen on a background goroutine; HandleFrame never
// blocks and drops the datagram when the send buffer is full.
type IdentityForwarder struct {
	conn        *net.UDPConn
	channel     chan []byte
	stats       *PacketStats
	logInterval time.Duration
	address     string
}

// NewIdentityForwarder dials address (host:port) for identity datagrams.
func NewIdentityForwarder(address string, buffer int, stats *PacketStats, logInterval time.Duration) (*IdentityForwarder, error) {
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}
	if buffer <= 0 {
		buffer = 256
	}
	if stats == nil {
		stats = NewPacketStats(nil)
	}
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &IdentityForwarder{
		conn:        conn,
		channel:     make(chan []byte, buffer),
		stats:       stats,
		logInterval: logInterval,
		address:     address,
	}, nil
}

// Start runs the send loop until ctx is cancelled.
func (f *IdentityForwarder) Start(ctx context.Context) {
	go func() {
		failed := 0
		var lastErr error
		ticker := time.NewTicker(f.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case datagram := <-f.channel:
				if _, err := f.conn.Write(datagram); err != nil {
					failed++
					lastErr = err
				}
			case <-ticker.C:
				if failed > 0 {
					logf("failed to forward %d identity datagrams to %s (latest: %v)", failed, f.address, lastErr)
					failed, lastErr = 0, nil
				}
			}
		}
	}()
	logf("forwarding track identities to %s", f.address)
}

// HandleFrame queues the frame's identities for sending.
func (f *IdentityForwarder) HandleFrame(_ ingest.Frame, result tracking.FrameResult) error {
	select {
	case f.channel <- EncodeIdentities(result):
	default:
		f.stats.AddDropped()
	}
	return nil
}

// Close closes the UDP connection.
func (f *IdentityForwarder) Close() error {
	return f.conn.Close()
}
